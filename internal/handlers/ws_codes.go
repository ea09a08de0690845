// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the realtime channel. These provide
// more specific reasons for closure than the standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided auth token was invalid or expired.
)
