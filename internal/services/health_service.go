package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"specview/internal/infrastructure"
	"specview/pkg/contracts"
)

// ClientCounter reports connected WebSocket clients
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	scans     *ScanService
	clients   ClientCounter
	system    *infrastructure.SystemMetrics
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds    float64                     `json:"uptime_seconds"`
	CachedCatalogs   int                         `json:"cached_catalogs"`
	WebSocketClients int                         `json:"websocket_clients"`
	Runtime          infrastructure.RuntimeStats `json:"runtime"`
	GoVersion        string                      `json:"go_version"`
	OS               string                      `json:"os"`
	Arch             string                      `json:"arch"`
}

// NewHealthService creates a new health service. scans, clients and system
// may be nil; the matching checks then report "unavailable".
func NewHealthService(scans *ScanService, clients ClientCounter, system *infrastructure.SystemMetrics, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	startTime := time.Now()
	if system == nil {
		system, _ = infrastructure.NewSystemMetrics(nil, startTime)
	}

	logger.Info("HealthService initialized", slog.String("version", contracts.Version))

	return &HealthService{
		version:   contracts.Version,
		scans:     scans,
		clients:   clients,
		system:    system,
		startTime: startTime,
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]interface{}{
			"scans":     hs.checkScanHealth(),
			"websocket": hs.checkWebSocketHealth(),
		},
	}

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		Runtime:       hs.system.Collect(ctx),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
	if hs.scans != nil {
		stats.CachedCatalogs = hs.scans.Cached()
	}
	if hs.clients != nil {
		stats.WebSocketClients = hs.clients.ClientCount()
	}
	return stats
}

func (hs *HealthService) checkScanHealth() ServiceHealth {
	if hs.scans == nil {
		return ServiceHealth{Status: "unavailable", Message: "scan service not configured"}
	}
	return ServiceHealth{
		Status: "ready",
		Uptime: time.Since(hs.startTime).Round(time.Second).String(),
	}
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.clients == nil {
		return ServiceHealth{Status: "unavailable", Message: "websocket hub not configured"}
	}
	return ServiceHealth{Status: "ready"}
}
