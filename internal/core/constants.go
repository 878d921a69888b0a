// Package core provides shared constants, paths, and date helpers for bcfeed.
package core

import (
	"os"
	"path/filepath"
)

// Date formats
const (
	ISODateFmt   = "2006-01-02"
	SlashDateFmt = "2006/01/02"
)

// On-disk document names under the data directory. The file layout is a
// contract: restarts and sibling processes read these back.
const (
	ReleaseCacheFile = "release_cache.json"
	EmptyDatesFile   = "no_results_dates.json"
	ScrapeStatusFile = "scrape_status.json"
	EmbedCacheFile   = "embed_cache.json"
	ViewedStateFile  = "viewed_state.json"
	StarredStateFile = "starred_state.json"
	CredentialsFile  = "credentials.json"
	TokenFile        = "token.json"
)

// Defaults for the server and the populate pipeline.
const (
	DefaultAddr      = "127.0.0.1:5050"
	MaxResultsHard   = 2000
	DefaultBatchSize = 20
	StatusWindowDays = 60
	DataDirEnvVar    = "BCFEED_DATA_DIR"
)

// Version is the bcfeed release version.
const Version = "1.0.0"

// DataDir returns the writable data directory for caches and settings.
// On macOS this prefers ~/Library/Application Support/bcfeed; elsewhere it
// falls back to a hidden folder in the user's home. BCFEED_DATA_DIR overrides.
func DataDir() string {
	if dir := os.Getenv(DataDirEnvVar); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bcfeed"
	}
	appSupport := filepath.Join(home, "Library", "Application Support")
	if info, err := os.Stat(appSupport); err == nil && info.IsDir() {
		return filepath.Join(appSupport, "bcfeed")
	}
	return filepath.Join(home, ".bcfeed")
}
