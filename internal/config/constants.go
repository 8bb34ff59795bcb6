package config

const (
	// DefaultDatabasePath is the default path for the library database
	DefaultDatabasePath = "./bookshelf.db"

	// DefaultFailureThreshold is how many consecutive storage failures trip the legacy fallback
	DefaultFailureThreshold = 3
)
