// Package events contains the event contracts pushed to WebSocket clients
// when scan catalogs change.
package events

import (
	"time"

	"specview/pkg/contracts/domain"
)

// ProtocolVersion is sent in the connection greeting
const ProtocolVersion = "1.0"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Catalog messages
	MessageTypeCatalogOpened   MessageType = "catalog.opened"
	MessageTypeCatalogReloaded MessageType = "catalog.reloaded"
	MessageTypeCatalogFailed   MessageType = "catalog.failed"

	// Connection messages
	MessageTypeConnect    MessageType = "connect"
	MessageTypeDisconnect MessageType = "disconnect"
	MessageTypeError      MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// CatalogEvent describes a scan-log file that was parsed
type CatalogEvent struct {
	Path   string               `json:"path"`
	Digest string               `json:"digest"`
	Scans  []domain.ScanSummary `json:"scans"`
	Rows   int                  `json:"rows"`
}

// CatalogFailedEvent reports a parse that did not produce a catalog
type CatalogFailedEvent struct {
	Path      string `json:"path"`
	ErrorType string `json:"error_type,omitempty"`
	Message   string `json:"message"`
}

// ConnectEvent greets a newly registered client
type ConnectEvent struct {
	ClientID string `json:"client_id"`
	Protocol string `json:"protocol"`
	Version  string `json:"version"`
}

// ErrorMessage represents an error sent to a client
type ErrorMessage struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// NewMessage stamps a message of the given type
func NewMessage(msgType MessageType, traceID string, data interface{}) WebSocketMessage {
	return WebSocketMessage{
		BaseMessage: BaseMessage{
			Type:      msgType,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	}
}
