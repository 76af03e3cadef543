package config

import (
	"time"

	"specview/pkg/contracts"
)

// Application constants
const (
	AppName    = "specview"
	AppVersion = contracts.Version

	// Server
	DefaultPort = 8080

	// Rate limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// WebSocket
	WebSocketPingPeriod      = 30 * time.Second
	WebSocketPongWait        = 60 * time.Second
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// File paths (relative to the working directory)
	DefaultDataDir   = "."
	DefaultExportDir = "exports"
	DefaultLogsDir   = "logs"

	// Catalog cache entries, one per scan-log file
	DefaultCacheSize = 32

	// Largest accepted scan-log file
	DefaultMaxFileSize = 1 << 30

	// Logging
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
