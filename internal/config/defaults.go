package config

const (
	defaultLibraryDir             = "~/Music"
	defaultStagingDir             = "~/.local/share/cratedig/staging"
	defaultLogDir                 = "~/.local/share/cratedig/logs"
	defaultStateDir               = "~/.local/share/cratedig/state"
	defaultDiscographyDir         = "~/.local/share/cratedig/discography"
	defaultAPIBind                = "127.0.0.1:7489"
	defaultSlotCount              = 2
	defaultPollIntervalMillis     = 2000
	defaultErrorBackoffSeconds    = 5
	defaultQueueCapacity          = 1000
	defaultFailureCooldownMinutes = 30
	defaultHistoryRingSize        = 200
	defaultIndexerRetryCount      = 3
	defaultIndexerRetryDelay      = 2
	defaultIndexerSearchTimeout   = 30
	defaultIndexerPingTimeout    = 5
	defaultSoulseekSearchTimeout  = 15
	defaultSoulseekResponseLimit  = 100
	defaultSoulseekDownloadTimout = 900
	defaultUsenetCategory         = "music"
	defaultTorrentCategory        = "music"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
	defaultNotifyRequestTimeout   = 10
)

// ProviderSoulseek and ProviderIndexer name the acquisition chains accepted in
// providers.order.
const (
	ProviderSoulseek = "soulseek"
	ProviderIndexer  = "indexer"
)

// Audio categories used by Newznab/Torznab indexers.
var defaultIndexerCategories = []int{3000, 3010, 3040}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
			APIBind:    defaultAPIBind,
		},
		Slots: Slots{
			Count:               defaultSlotCount,
			PollIntervalMillis:  defaultPollIntervalMillis,
			ErrorBackoffSeconds: defaultErrorBackoffSeconds,
		},
		Queue: Queue{
			Capacity:               defaultQueueCapacity,
			FailureCooldownMinutes: defaultFailureCooldownMinutes,
		},
		History: History{
			RingSize: defaultHistoryRingSize,
		},
		Providers: Providers{
			Order: []string{ProviderSoulseek, ProviderIndexer},
		},
		Soulseek: Soulseek{
			SearchTimeoutSeconds:   defaultSoulseekSearchTimeout,
			ResponseLimit:          defaultSoulseekResponseLimit,
			DownloadTimeoutSeconds: defaultSoulseekDownloadTimout,
		},
		Indexer: Indexer{
			Categories:           append([]int(nil), defaultIndexerCategories...),
			RetryCount:           defaultIndexerRetryCount,
			RetryDelaySeconds:    defaultIndexerRetryDelay,
			SearchTimeoutSeconds: defaultIndexerSearchTimeout,
			PingTimeoutSeconds:  defaultIndexerPingTimeout,
		},
		Usenet: Usenet{
			Category: defaultUsenetCategory,
		},
		Torrent: Torrent{
			Category: defaultTorrentCategory,
		},
		Discography: Discography{
			StagingDir: defaultDiscographyDir,
		},
		Notifications: Notifications{
			RequestTimeout:   defaultNotifyRequestTimeout,
			ReleaseCompleted: true,
			ReleaseFailed:    true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
