package broker

import "go.uber.org/zap"

// Config holds client-wide plugin configuration. Connection details travel
// with each request in core.ConnectionConfig.
type Config struct {
	// Logger receives the plugin's logs. Nil means no logging.
	Logger *zap.Logger

	// Extra holds plugin-specific configuration.
	Extra map[string]any
}
