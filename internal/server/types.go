package server

import (
	"errors"
	"strings"
	"time"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
)

var (
	// ErrClientClosed is returned by Send after the client has been closed.
	ErrClientClosed = errors.New("client closed")
	// ErrSendBufferFull is returned by Send when the client cannot keep up.
	ErrSendBufferFull = errors.New("send buffer full")
)

// isExpectedCloseError checks if an error is an expected connection close error
func isExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
