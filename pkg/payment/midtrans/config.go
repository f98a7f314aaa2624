package midtrans

// Config represents the configuration for the Midtrans Core API client
type Config struct {
	// ServerKey authenticates API calls and signs webhook notifications.
	// Must never reach the frontend.
	ServerKey string

	// ClientKey is the public key embedded in payment pages
	ClientKey string

	// BaseURL is the Core API base URL (sandbox or production)
	BaseURL string

	// IsProduction toggles the production environment
	IsProduction bool
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ServerKey == "" {
		return ErrInvalidRequest
	}
	if c.BaseURL == "" {
		return ErrInvalidRequest
	}
	return nil
}
