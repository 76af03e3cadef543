// Package shared holds code used by more than one layer that belongs to no
// single domain package.
//
// The testutil subpackage provides the buffered slog handler used to assert
// on log output and the sample scan-log fixtures shared by the parser,
// service, transport and CLI tests:
//
//	logger, records := testutil.NewTestLogger(t)
//	path := testutil.WriteScanLog(t, t.TempDir(), "run.spec", testutil.SampleScanLog)
//
// Nothing here may import other internal packages.
package shared
