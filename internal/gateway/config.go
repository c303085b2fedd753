package gateway

import (
	"fmt"
	"net/url"
	"time"
)

// Config represents the configuration for the cart backend client
type Config struct {
	// BaseURL is the shop backend root, e.g. https://shop.example.com
	BaseURL string

	// Timeout bounds each HTTP round trip. Zero uses the default.
	Timeout time.Duration
}

const defaultTimeout = 30 * time.Second

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL %q is not absolute", ErrInvalidConfig, c.BaseURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}
