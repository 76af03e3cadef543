// Package services implements the application layer between the HTTP
// handlers, the CLI and the scan-log packages.
//
// ScanService owns the parsed-catalog cache. Every request names a file
// path; the file is re-read and hashed with BLAKE2b on each request and
// reparsed only when the digest differs from the cached one, so callers
// always see the current file content without paying for a parse.
//
// # Usage
//
//	svc, err := services.NewScanService(cfg, paths, tracer, metrics, hub, logger)
//	if err != nil {
//	    return err
//	}
//	catalog, err := svc.Open(ctx, "data/run42.spec")
//	table, advisories, err := svc.Evaluate(ctx, "data/run42.spec", "1.1", dataprocessing.DeriveOptions{})
package services
