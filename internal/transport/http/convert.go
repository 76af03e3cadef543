package http

import (
	"fmt"

	"specview/internal/files"
	"specview/internal/selection"
	"specview/internal/services"
	api "specview/pkg/contracts/api/v1"
)

func catalogResponse(c *services.Catalog) api.CatalogResponse {
	return api.CatalogResponse{
		Path:     c.Path,
		Digest:   c.Digest,
		ParsedAt: c.ParsedAt,
		Scans:    c.Scans.Summaries(),
	}
}

func fileEntries(found []files.FileInfo) []api.FileEntry {
	entries := make([]api.FileEntry, 0, len(found))
	for _, f := range found {
		entries = append(entries, api.FileEntry{
			Path:    f.Path,
			Name:    f.Name,
			Size:    f.Size,
			ModTime: f.ModTime,
			ScanLog: f.ScanLog,
		})
	}
	return entries
}

func advisoryMessages(advisories []*selection.Advisory) []string {
	if len(advisories) == 0 {
		return nil
	}
	out := make([]string, 0, len(advisories))
	for _, a := range advisories {
		out = append(out, a.Message)
	}
	return out
}

// etag quotes a content digest for the ETag header
func etag(digest string) string {
	return fmt.Sprintf("%q", digest)
}
