package httpapi

import "time"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
// Chat histories can be long, so the default is 4 MiB.
var maxBodyBytes int64 = 4 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 4 << 20
		return
	}
	maxBodyBytes = n
}

// completionTimeout bounds a /v1/chat/completions or waiting /load request.
// Zero means no additional timeout beyond server/connection timeouts.
var completionTimeout time.Duration

// SetCompletionTimeoutSeconds sets the request timeout in seconds (0 disables).
func SetCompletionTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	completionTimeout = time.Duration(sec) * time.Second
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
