package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleScanLog holds three scans with motor headers and a repeated scan
// number. Scan ids are 0.1, 0.2 and 1.1; 0.1 has three rows.
const SampleScanLog = `#F sample.spec
#E 1700000000
#D Mon Nov 13 10:00:00 2023
#O0 th tth
#O1 chi

#S 1 ascan th 0 1 2 1
#D Mon Nov 13 10:01:00 2023
#T 1 (Seconds)
#P0 0.0 12.5
#P1 -3
#L dcm_energy I0 pl0 pl1 pl2 pl3 pl4 pl5
7.0 2 10 20 1 2 3 4
7.5 4 30 40 5 6 7 8
8.0 1 5 6 1 1 1 1

#S 2 ascan th 0 1 2 1
#P0 0.1 12.6
#P1 -2
#L dcm_energy I0 pl0 pl1 pl2 pl3 pl4 pl5
7.0 1 1 2 0 0 0 0

#S 1 loopscan 3
#P0 9 9
#P1 1
#L dcm_energy I0 pl0 pl1 pl2 pl3 pl4 pl5
7.1 1 1 1 1 1 1 1
`

// WriteScanLog writes content to dir/name and returns the full path
func WriteScanLog(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create fixture dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
	return path
}
