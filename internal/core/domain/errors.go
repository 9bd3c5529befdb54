package domain

import "go.trai.ch/zerr"

var (
	// ErrDuplicateTask is returned when registering a task whose name is already taken.
	ErrDuplicateTask = zerr.New("duplicate task")

	// ErrMissingTask is returned when running or depending on a name that is not registered.
	ErrMissingTask = zerr.New("missing task")

	// ErrTaskFailedToProduceOutput is returned when a file task's action succeeds
	// but its output path still does not exist.
	ErrTaskFailedToProduceOutput = zerr.New("task failed to produce output")

	// ErrCycleDetected is returned when a dependency walk reaches a task that is still resolving.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrSessionActive is returned when starting a session while another one is open.
	ErrSessionActive = zerr.New("session already active")

	// ErrWorkspaceBusy is returned when the workspace is used while a run is in progress.
	ErrWorkspaceBusy = zerr.New("workspace is busy running another task")

	// ErrInvalidTaskName is returned when a task name is empty or malformed.
	ErrInvalidTaskName = zerr.New("invalid task name")

	// ErrInvalidTaskKind is returned when a configured task kind is unknown.
	ErrInvalidTaskKind = zerr.New("invalid task kind, expected 'file' or 'command'")

	// ErrNoTargetsSpecified is returned when no targets are specified for the run command.
	ErrNoTargetsSpecified = zerr.New("no targets specified")

	// ErrBuildExecutionFailed marks a run that failed inside a session.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrInterrupted is returned when the user quits the interactive display during a run.
	ErrInterrupted = zerr.New("interrupted by user")

	// ErrStoreCreateFailed is returned when the build info store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create build info store directory")

	// ErrStoreReadFailed is returned when the build info cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read build info")

	// ErrStoreUnmarshalFailed is returned when the build info cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal build info")

	// ErrStoreMarshalFailed is returned when the build info cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal build info")

	// ErrStoreWriteFailed is returned when the build info cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write build info")

	// ErrJournalOpenFailed is returned when the session journal database cannot be opened.
	ErrJournalOpenFailed = zerr.New("failed to open session journal")

	// ErrJournalMigrateFailed is returned when the journal schema cannot be applied.
	ErrJournalMigrateFailed = zerr.New("failed to migrate session journal")

	// ErrJournalWriteFailed is returned when a session cannot be recorded.
	ErrJournalWriteFailed = zerr.New("failed to record session")

	// ErrJournalReadFailed is returned when sessions cannot be listed.
	ErrJournalReadFailed = zerr.New("failed to read session journal")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigNotFound is returned when no config file is found walking up from the working directory.
	ErrConfigNotFound = zerr.New("could not find kiln.yaml")

	// ErrConfigIncludeCycle is returned when config files include each other.
	ErrConfigIncludeCycle = zerr.New("config include cycle")

	// ErrInvalidRecipe is returned when a recipe block is missing required fields.
	ErrInvalidRecipe = zerr.New("invalid recipe")

	// ErrFileOpenFailed is returned when a file cannot be opened.
	ErrFileOpenFailed = zerr.New("failed to open file")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrFileWriteFailed is returned when an output file cannot be written.
	ErrFileWriteFailed = zerr.New("failed to write file")

	// ErrPathStatFailed is returned when stating a path fails.
	ErrPathStatFailed = zerr.New("failed to stat path")

	// ErrCommandFailed is returned when an external command exits unsuccessfully.
	ErrCommandFailed = zerr.New("command failed")

	// ErrEmptyCommand is returned when a shell-backed action has no arguments.
	ErrEmptyCommand = zerr.New("empty command")

	// ErrInvalidDataset is returned when a dataset file is truncated or corrupt.
	ErrInvalidDataset = zerr.New("invalid dataset file")
)
