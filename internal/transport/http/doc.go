// Package http implements the HTTP handlers of the specview service. Handlers
// stay thin: they decode and validate requests, call the scan service and
// render JSON responses.
//
// # Routes
//
//	GET  /api/files                      list scan logs under a directory
//	POST /api/files/open                 parse a scan log into a catalog
//	POST /api/files/reload               force a re-parse
//	GET  /api/scans?path=                list scans (ETag / If-None-Match)
//	GET  /api/scans/{id}?path=           one scan with its motor positions
//	POST /api/scans/{id}/select          resolve a selection pattern
//	POST /api/scans/{id}/evaluate        derive the SIG/BG1/BG2/RXES table
//	POST /api/scans/{id}/spectrum        build a plottable spectrum
//	POST /api/scans/{id}/spectrum/export write the spectrum as text files
//	POST /api/export                     export scans or derived tables
//	POST /api/logs                       forward browser log lines
//
// # Error Handling
//
// Every error is rendered as RFC 7807 problem details by the shared
// ErrorHandler, for example:
//
//	{
//	    "type": "/errors/selection/empty",
//	    "title": "Empty Selection",
//	    "status": 422,
//	    "detail": "pattern \"pl9\" selects no columns",
//	    "instance": "/api/scans/0.1/select",
//	    "trace_id": "..."
//	}
package http
