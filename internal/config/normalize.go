package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSlots()
	c.normalizeQueue()
	c.normalizeProviders()
	c.normalizeSoulseek()
	c.normalizeIndexer()
	c.normalizeUsenet()
	c.normalizeTorrent()
	if err := c.normalizeDiscography(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CRATEDIG_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeSlots() {
	if c.Slots.PollIntervalMillis <= 0 {
		c.Slots.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Slots.ErrorBackoffSeconds < 0 {
		c.Slots.ErrorBackoffSeconds = defaultErrorBackoffSeconds
	}
}

func (c *Config) normalizeQueue() {
	if c.Queue.FailureCooldownMinutes < 0 {
		c.Queue.FailureCooldownMinutes = 0
	}
	if c.History.RingSize <= 0 {
		c.History.RingSize = defaultHistoryRingSize
	}
}

func (c *Config) normalizeProviders() {
	order := make([]string, 0, len(c.Providers.Order))
	seen := make(map[string]struct{}, len(c.Providers.Order))
	for _, name := range c.Providers.Order {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		order = append(order, normalized)
	}
	if len(order) == 0 {
		order = []string{ProviderSoulseek, ProviderIndexer}
	}
	c.Providers.Order = order
}

func (c *Config) normalizeSoulseek() {
	c.Soulseek.URL = strings.TrimRight(strings.TrimSpace(c.Soulseek.URL), "/")
	c.Soulseek.APIKey = strings.TrimSpace(c.Soulseek.APIKey)
	if c.Soulseek.APIKey == "" {
		if value, ok := os.LookupEnv("SLSKD_API_KEY"); ok {
			c.Soulseek.APIKey = strings.TrimSpace(value)
		}
	}
	c.Soulseek.DownloadDir = strings.TrimSpace(c.Soulseek.DownloadDir)
	if c.Soulseek.DownloadDir != "" {
		if expanded, err := expandPath(c.Soulseek.DownloadDir); err == nil {
			c.Soulseek.DownloadDir = expanded
		}
	}
	if c.Soulseek.SearchTimeoutSeconds <= 0 {
		c.Soulseek.SearchTimeoutSeconds = defaultSoulseekSearchTimeout
	}
	if c.Soulseek.ResponseLimit <= 0 {
		c.Soulseek.ResponseLimit = defaultSoulseekResponseLimit
	}
	if c.Soulseek.DownloadTimeoutSeconds <= 0 {
		c.Soulseek.DownloadTimeoutSeconds = defaultSoulseekDownloadTimout
	}
}

func (c *Config) normalizeIndexer() {
	c.Indexer.URL = strings.TrimRight(strings.TrimSpace(c.Indexer.URL), "/")
	c.Indexer.APIKey = strings.TrimSpace(c.Indexer.APIKey)
	if c.Indexer.APIKey == "" {
		if value, ok := os.LookupEnv("PROWLARR_API_KEY"); ok {
			c.Indexer.APIKey = strings.TrimSpace(value)
		}
	}
	if len(c.Indexer.Categories) == 0 {
		c.Indexer.Categories = append([]int(nil), defaultIndexerCategories...)
	}
	if c.Indexer.RetryCount <= 0 {
		c.Indexer.RetryCount = defaultIndexerRetryCount
	}
	if c.Indexer.RetryDelaySeconds < 0 {
		c.Indexer.RetryDelaySeconds = defaultIndexerRetryDelay
	}
	if c.Indexer.SearchTimeoutSeconds <= 0 {
		c.Indexer.SearchTimeoutSeconds = defaultIndexerSearchTimeout
	}
	if c.Indexer.PingTimeoutSeconds <= 0 {
		c.Indexer.PingTimeoutSeconds = defaultIndexerPingTimeout
	}
}

func (c *Config) normalizeUsenet() {
	c.Usenet.URL = strings.TrimRight(strings.TrimSpace(c.Usenet.URL), "/")
	c.Usenet.APIKey = strings.TrimSpace(c.Usenet.APIKey)
	if c.Usenet.APIKey == "" {
		if value, ok := os.LookupEnv("SABNZBD_API_KEY"); ok {
			c.Usenet.APIKey = strings.TrimSpace(value)
		}
	}
	c.Usenet.Category = strings.TrimSpace(c.Usenet.Category)
	if c.Usenet.Category == "" {
		c.Usenet.Category = defaultUsenetCategory
	}
}

func (c *Config) normalizeTorrent() {
	c.Torrent.URL = strings.TrimRight(strings.TrimSpace(c.Torrent.URL), "/")
	c.Torrent.Username = strings.TrimSpace(c.Torrent.Username)
	if c.Torrent.Password == "" {
		if value, ok := os.LookupEnv("QBITTORRENT_PASSWORD"); ok {
			c.Torrent.Password = value
		}
	}
	c.Torrent.Category = strings.TrimSpace(c.Torrent.Category)
	if c.Torrent.Category == "" {
		c.Torrent.Category = defaultTorrentCategory
	}
}

func (c *Config) normalizeDiscography() error {
	if strings.TrimSpace(c.Discography.StagingDir) == "" {
		c.Discography.StagingDir = defaultDiscographyDir
	}
	var err error
	if c.Discography.StagingDir, err = expandPath(c.Discography.StagingDir); err != nil {
		return fmt.Errorf("discography.staging_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text", "pretty":
		c.Logging.Format = "console"
	case "json":
		c.Logging.Format = "json"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	if level == "warning" {
		level = "warn"
	}
	c.Logging.Level = level
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
