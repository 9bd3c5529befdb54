package domain

// Project describes a loaded task configuration.
type Project struct {
	// Root is the directory holding the top-level config file.
	// Relative task names resolve against it.
	Root string
	// ConfigFiles lists every file that was read, top-level first.
	ConfigFiles []string
	// Tasks is the number of tasks the configuration registered.
	Tasks int
}
