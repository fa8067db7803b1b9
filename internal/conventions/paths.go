package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default tasknotify data directory name (relative to home).
	DefaultDataDir = ".tasknotify"
	// HistoryDBFile is the completion history database filename.
	HistoryDBFile = "history.db"

	// EnvPrefix is the prefix of the environment variables that set the CLI flags.
	EnvPrefix = "TASKNOTIFY"
)

// DataDir returns the data directory inside a home directory.
func DataDir(homeDir string) string {
	return filepath.Join(homeDir, DefaultDataDir)
}

// HistoryDBPath returns the default completion history database path inside a home directory.
func HistoryDBPath(homeDir string) string {
	return filepath.Join(DataDir(homeDir), HistoryDBFile)
}
