// Package websocket pushes catalog events to browser clients.
//
// A Hub owns the client set and fans out messages published through
// Publish; each Client runs a read pump that only keeps the connection alive
// and a write pump that drains its send queue and sends pings. Slow clients
// whose queue fills up are disconnected rather than allowed to block the hub.
package websocket
