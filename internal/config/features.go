package config

const (
	// FeatureStreamUpdates keeps list streams open for updates to listed items.
	FeatureStreamUpdates = "stream_updates"
	// FeatureStreamCreates keeps list streams open for newly created items.
	FeatureStreamCreates = "stream_creates"
	// FeatureConfirmWriteCancel asks before cancelling a running write.
	FeatureConfirmWriteCancel = "confirm_write_cancel"
)

// DefaultFeatureValues defines the default values for each feature
var DefaultFeatureValues = map[string]bool{
	FeatureStreamUpdates:      true,
	FeatureStreamCreates:      true,
	FeatureConfirmWriteCancel: true,
}

// IsFeatureEnabled checks if a feature is enabled in the configuration.
func (c *Config) IsFeatureEnabled(feature string) bool {
	value, exists := c.Features[feature]
	if !exists {
		return DefaultFeatureValues[feature]
	}
	return value
}
