// Package files finds candidate scan-log files on disk.
//
// Discovery lists the regular files of a directory that match a glob,
// oldest first, and flags the ones whose leading lines carry a "#S" scan
// header. Nothing is parsed here.
//
// Example usage:
//
//	discovery := files.NewDiscovery(paths.DataDir)
//	found, err := discovery.FindScanFiles(".", "*.spec")
//	if latest, ok := files.GetLatestFile(found); ok {
//	    fmt.Println(latest.Path)
//	}
package files
