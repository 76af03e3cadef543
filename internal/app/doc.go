// Package app wires the specview server together: configuration, logging,
// OpenTelemetry, the scan service, the websocket hub and the chi router.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, YAML, .env and environment
//	2. Initialize logging and OpenTelemetry
//	3. Resolve and create the data, export and log directories
//	4. Create the websocket hub, scan service and health service
//	5. Build the router and the HTTP server
//
// # Usage
//
//	app, err := app.NewApplication("")
//	if err != nil {
//	    return err
//	}
//	return app.Run()
//
// Run blocks until SIGINT or SIGTERM and then shuts down gracefully.
package app
