package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Approval ApprovalConfig
	Splitter SplitterConfig
	Watcher  WatcherConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// ApprovalConfig holds approval state machine settings.
type ApprovalConfig struct {
	// ProposalTTL is how long a proposal accepts signatures before expiring.
	ProposalTTL time.Duration
}

// SplitterConfig holds fund-split defaults applied when a rule leaves a
// setting unset.
type SplitterConfig struct {
	DecimalPlaces   int32
	RemainderAction RemainderAction
}

// WatcherConfig holds expiration sweep and deposit watcher settings
type WatcherConfig struct {
	LookbackWindow  time.Duration
	PollingInterval time.Duration
	CleanupInterval time.Duration
	RulesFile       string
}
