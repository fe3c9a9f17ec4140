package constants

import "time"

const (
	AppName            = "habitsync"
	DefaultKeyringUser = "remote-connection"
	DefaultConfigDir   = "~/.config/habitsync"
	DefaultDBPath      = "~/.config/habitsync/habitsync.db"
	DefaultConfigFile  = "~/.config/habitsync/config.toml"
	Version            = "v0.1.0"

	// DateFormat is the calendar-day format used for progress dates (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the reminder time format (HH:MM)
	TimeFormat = "15:04"

	// Environment overrides
	EnvRemoteDSN       = "HABITSYNC_REMOTE_DSN"
	EnvUser            = "HABITSYNC_USER"
	EnvTestPostgresDSN = "HABITSYNC_TEST_POSTGRES_DSN"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "habitsync-"
	BackupFileSuffix = ".db"

	// Streak lookback window in days
	StreakWindowDays = 90

	// Queue paging
	PendingBatchSize = 50

	// Sync trigger defaults
	DefaultWatchInterval       = 5 * time.Minute
	DefaultWatchDebounce       = 2 * time.Second
	DefaultConnectivityTimeout = 3 * time.Second

	// Remote pool settings
	RemoteMaxOpenConns    = 5
	RemoteConnMaxLifetime = 5 * time.Minute
)
