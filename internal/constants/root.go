package constants

import "time"

const (
	AppName            = "quitlog"
	DefaultKeyringUser = "remote-connection"
	DefaultConfigPath  = "~/.config/quitlog/quitlog.db"
	Version            = "v0.1.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "quitlog-"
	BackupFileSuffix = ".db"

	// Sync constants
	MaxRetries           = 3
	MaxTopTags           = 5
	DefaultRemoteTimeout = 5 * time.Second
	DefaultProbeInterval = 15 * time.Second
	DefaultDrainInterval = 5 * time.Minute
	RemoteCollectionRoot = "users"
	RemoteMemoryScheme   = "memory://"

	// Environment variables
	EnvDatabase = "QUITLOG_DB"
	EnvRemote   = "QUITLOG_REMOTE"
	EnvOwner    = "QUITLOG_OWNER"
	EnvDebug    = "QUITLOG_DEBUG"
)
