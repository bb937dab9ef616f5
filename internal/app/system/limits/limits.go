// internal/app/system/limits/limits.go
// Package limits holds the size limits applied to client input.
package limits

const (
	// MaxJSONBody bounds REST request bodies. Project content is the
	// largest field any endpoint accepts.
	MaxJSONBody = 1 << 20 // 1 MB

	// MaxSocketFrame bounds a single inbound WebSocket frame. A codeChange
	// carries the whole document, so it matches MaxJSONBody.
	MaxSocketFrame = MaxJSONBody
)
