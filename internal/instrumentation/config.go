package instrumentation

// Config holds observability configuration.
type Config struct {
	// Enabled determines whether metrics are collected at all. When false,
	// the provider hands out a no-op recorder.
	Enabled bool

	// ServiceName identifies this service in exported metrics.
	ServiceName string

	// ServiceVersion is the build version attached to the resource.
	ServiceVersion string
}

// DefaultConfig returns the default observability configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		ServiceName: "tethru",
	}
}
