package domain

import "path/filepath"

const (
	// OrcaDirName is the name of the internal workspace directory.
	OrcaDirName = ".orca"

	// StoreDirName is the name of the filesystem store directory.
	StoreDirName = "store"

	// WorkDirName is the name of the directory holding per-execution work directories.
	WorkDirName = "work"

	// SettingsFileName is the name of the settings file inside OrcaDirName.
	SettingsFileName = "config.yaml"

	// DatabaseFileName is the name of the sqlite store database.
	DatabaseFileName = "orca.db"

	// DefaultPipelineFile is the definition file used when none is given.
	DefaultPipelineFile = "pipeline.yaml"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultStorePath returns the default path of the filesystem store.
// It joins .orca and store.
func DefaultStorePath() string {
	return filepath.Join(OrcaDirName, StoreDirName)
}

// DefaultSettingsPath returns the default path of the settings file.
func DefaultSettingsPath() string {
	return filepath.Join(OrcaDirName, SettingsFileName)
}

// DefaultDatabasePath returns the default path of the sqlite store.
func DefaultDatabasePath() string {
	return filepath.Join(OrcaDirName, DatabaseFileName)
}

// DefaultWorkPath returns the default parent of execution work directories.
func DefaultWorkPath() string {
	return filepath.Join(OrcaDirName, WorkDirName)
}
