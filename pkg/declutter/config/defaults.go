// Package config provides configuration management for the declutter daemon
// and CLI.
package config

import "time"

// Default configuration values for declutter.
const (
	// DefaultThresholdMinutes seeds the idle threshold of a fresh settings store.
	DefaultThresholdMinutes = 90

	// DefaultAutoApprove seeds whether sweeps close tabs without review.
	DefaultAutoApprove = false

	// DefaultAlarmPeriodMinutes seeds the sweep alarm period.
	DefaultAlarmPeriodMinutes = 5

	// DefaultProbeTimeout bounds a single media probe.
	DefaultProbeTimeout = 2 * time.Second

	// DefaultReviewURL is the page opened as the review surface.
	DefaultReviewURL = "http://127.0.0.1:7717/review"

	// DefaultHistoryRetentionDays is how long closed-tab records are kept.
	DefaultHistoryRetentionDays = 30

	// DefaultLogMaxSize is the rotation size used when logging.rotation.max_size
	// is empty or unparseable.
	DefaultLogMaxSize = "10MB"

	appName = "declutter"
)

// DefaultMediaPatterns are the URL globs of streaming sites whose tabs are
// probed for playback before being offered for closing.
var DefaultMediaPatterns = []string{
	"*youtube.com*",
}

// DefaultComponentLevels are the per-component log levels of a fresh config.
var DefaultComponentLevels = map[string]string{
	"daemon":   "info",
	"engine":   "info",
	"selector": "info",
	"browser":  "info",
	"watcher":  "warn",
	"client":   "info",
}
