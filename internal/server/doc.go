// Package server implements the HTTP and WebSocket transport of roomchat.
//
// Each accepted socket becomes a Client that implements realtime.Conn. The
// Hub runs the per-client read and write pumps and drains them on shutdown,
// while the realtime Router decides what every inbound frame means. The
// implementation is organized into files for configuration, hub management,
// clients, routing, and HTTP handlers.
package server
