package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSlots(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateDiscography(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.LibraryDir == "" {
		return errors.New("paths.library_dir must be set")
	}
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if !strings.Contains(c.Paths.APIBind, ":") {
		return fmt.Errorf("paths.api_bind must be host:port, got %q", c.Paths.APIBind)
	}
	return nil
}

func (c *Config) validateSlots() error {
	if c.Slots.Count < 0 {
		return errors.New("slots.count must be zero or positive")
	}
	if c.Slots.Count > 32 {
		return errors.New("slots.count must not exceed 32")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.Capacity <= 0 {
		return errors.New("queue.capacity must be positive")
	}
	return nil
}

func (c *Config) validateProviders() error {
	for _, name := range c.Providers.Order {
		switch name {
		case ProviderSoulseek, ProviderIndexer:
		default:
			return fmt.Errorf("providers.order contains unknown provider %q (want %q or %q)", name, ProviderSoulseek, ProviderIndexer)
		}
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	if c.Indexer.PingTimeoutSeconds >= c.Indexer.SearchTimeoutSeconds {
		return fmt.Errorf("indexer.ping_timeout_seconds (%d) must be shorter than indexer.search_timeout_seconds (%d)",
			c.Indexer.PingTimeoutSeconds, c.Indexer.SearchTimeoutSeconds)
	}
	return nil
}

// TransportWarnings lists transports that are enabled but missing a URL or
// key. They are not load errors: the daemon treats such a transport as
// disabled.
func (c *Config) TransportWarnings() []string {
	var warnings []string
	if c.Soulseek.Enabled {
		if c.Soulseek.URL == "" {
			warnings = append(warnings, "soulseek.url is empty; soulseek is disabled")
		}
		if c.Soulseek.APIKey == "" {
			warnings = append(warnings, "soulseek.api_key is empty (or set SLSKD_API_KEY); soulseek is disabled")
		}
	}
	if c.Indexer.Enabled {
		if c.Indexer.URL == "" {
			warnings = append(warnings, "indexer.url is empty; indexer is disabled")
		}
		if c.Indexer.APIKey == "" {
			warnings = append(warnings, "indexer.api_key is empty (or set PROWLARR_API_KEY); indexer is disabled")
		}
	}
	if c.Usenet.Enabled {
		if c.Usenet.URL == "" {
			warnings = append(warnings, "usenet.url is empty; usenet is disabled")
		}
		if c.Usenet.APIKey == "" {
			warnings = append(warnings, "usenet.api_key is empty (or set SABNZBD_API_KEY); usenet is disabled")
		}
	}
	if c.Torrent.Enabled && c.Torrent.URL == "" {
		warnings = append(warnings, "torrent.url is empty; torrent is disabled")
	}
	return warnings
}

func (c *Config) validateDiscography() error {
	if !c.Discography.Enabled {
		return nil
	}
	if c.Discography.StagingDir == c.Paths.LibraryDir {
		return errors.New("discography.staging_dir must differ from paths.library_dir")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
