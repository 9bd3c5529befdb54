package domain

import "path/filepath"

const (
	// KilnDirName is the name of the internal state directory.
	KilnDirName = ".kiln"

	// StoreDirName is the name of the build info store directory.
	StoreDirName = "store"

	// JournalFileName is the name of the session journal database.
	JournalFileName = "journal.db"

	// ConfigFileName is the name of the task configuration file.
	ConfigFileName = "kiln.yaml"

	// DoneFileSuffix is appended to a group name to form its done file.
	DoneFileSuffix = "_done.txt"

	// FrameNamePattern is the printf pattern of a frame file inside a frame directory.
	FrameNamePattern = "%08d.png"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultKilnPath returns the default root directory for kiln metadata.
func DefaultKilnPath() string {
	return KilnDirName
}

// DefaultStorePath returns the default path for the build info store.
// It joins .kiln and store.
func DefaultStorePath() string {
	return filepath.Join(KilnDirName, StoreDirName)
}

// DefaultJournalPath returns the default path for the session journal.
// It joins .kiln and journal.db.
func DefaultJournalPath() string {
	return filepath.Join(KilnDirName, JournalFileName)
}

// DoneFileName returns the done file that marks a multi-file group under prefix as complete.
func DoneFileName(prefix, group string) string {
	return JoinTaskName(prefix, group+DoneFileSuffix)
}

// FramePattern returns the printf pattern for frames of a group under prefix.
func FramePattern(prefix, group string) string {
	return JoinTaskName(prefix, group, FrameNamePattern)
}
