package ports

import "go.trai.ch/kiln/internal/core/domain"

// ConfigLoader defines the interface for loading task definitions.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// DiscoverRoot walks up from cwd to find the directory holding kiln.yaml.
	DiscoverRoot(cwd string) (string, error)

	// Load reads the configuration found from path and registers its tasks into reg.
	// path is either a config file or a directory to start discovery from.
	Load(path string, reg Registry) (*domain.Project, error)
}
