package config

import (
	"github.com/kballard/go-shellquote"
	"go.trai.ch/kiln/internal/plot"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Kilnfile represents the structure of a kiln.yaml configuration file.
type Kilnfile struct {
	Version     string              `yaml:"version"`
	Prefix      string              `yaml:"prefix"`
	Include     []string            `yaml:"include"`
	Environment map[string]string   `yaml:"environment"`
	Tasks       map[string]*TaskDTO `yaml:"tasks"`
	Videos      []VideoDTO          `yaml:"videos"`
	Frames      []FramesDTO         `yaml:"frames"`
	Copies      []CopyDTO           `yaml:"copies"`
	Training    []TrainingDTO       `yaml:"training"`
	Standalone  []StandaloneDTO     `yaml:"standalone"`
	Datasets    []DatasetDTO        `yaml:"datasets"`
	Densities   []DensityDTO        `yaml:"densities"`
}

// TaskDTO represents a task definition in the configuration.
type TaskDTO struct {
	Kind        string            `yaml:"kind"`
	Cmd         CommandLine       `yaml:"cmd"`
	DependsOn   []string          `yaml:"dependsOn"`
	Environment map[string]string `yaml:"environment"`
	WorkingDir  string            `yaml:"workingDir"`
}

// CommandLine accepts either an argument list or a single shell-quoted string.
type CommandLine []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *CommandLine) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		args, err := shellquote.Split(value.Value)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "invalid command string"), "line", value.Line)
		}
		*c = args
		return nil
	}
	var args []string
	if err := value.Decode(&args); err != nil {
		return err
	}
	*c = args
	return nil
}

// VideoDTO encodes an existing frame sequence.
type VideoDTO struct {
	Prefix    string   `yaml:"prefix"`
	Frames    string   `yaml:"frames"`
	FrameRate int      `yaml:"frameRate"`
	DependsOn []string `yaml:"dependsOn"`
}

// FramesDTO renders a Gaussian moving along a path, optionally followed by a video.
type FramesDTO struct {
	Prefix    string          `yaml:"prefix"`
	Name      string          `yaml:"name"`
	Count     int             `yaml:"count"`
	GridSize  int             `yaml:"gridSize"`
	Bounds    []float64       `yaml:"bounds"`
	Scale     *plot.Scale     `yaml:"scale"`
	Gaussian  GaussianPathDTO `yaml:"gaussian"`
	DependsOn []string        `yaml:"dependsOn"`
	Video     bool            `yaml:"video"`
	FrameRate int             `yaml:"frameRate"`
}

// GaussianPathDTO describes the start and end of a Gaussian path.
type GaussianPathDTO struct {
	From      [2]float64 `yaml:"from"`
	To        [2]float64 `yaml:"to"`
	SigmaFrom float64    `yaml:"sigmaFrom"`
	SigmaTo   float64    `yaml:"sigmaTo"`
	Ease      string     `yaml:"ease"`
}

// CopyDTO copies a file.
type CopyDTO struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// TrainingDTO describes a multi-node torchrun job.
type TrainingDTO struct {
	Prefix       string            `yaml:"prefix"`
	Script       string            `yaml:"script"`
	Nodes        int               `yaml:"nodes"`
	ProcsPerNode int               `yaml:"procsPerNode"`
	MasterAddr   string            `yaml:"masterAddr"`
	MasterPort   int               `yaml:"masterPort"`
	DependsOn    []string          `yaml:"dependsOn"`
	Environment  map[string]string `yaml:"environment"`
}

// StandaloneDTO describes single machine training up to a list of checkpoints.
type StandaloneDTO struct {
	Prefix       string            `yaml:"prefix"`
	Script       string            `yaml:"script"`
	ProcsPerNode int               `yaml:"procsPerNode"`
	Checkpoints  []int             `yaml:"checkpoints"`
	Modules      []string          `yaml:"modules"`
	Accumulators []string          `yaml:"accumulators"`
	Rendezvous   *RendezvousDTO    `yaml:"rendezvous"`
	DependsOn    []string          `yaml:"dependsOn"`
	Environment  map[string]string `yaml:"environment"`
}

// RendezvousDTO selects c10d rendezvous.
type RendezvousDTO struct {
	ID   int `yaml:"id"`
	Port int `yaml:"port"`
}

// DatasetDTO describes a sampled two dimensional Gaussian mixture.
type DatasetDTO struct {
	Prefix        string      `yaml:"prefix"`
	Samples       int         `yaml:"samples"`
	Seed          uint64      `yaml:"seed"`
	GridSize      int         `yaml:"gridSize"`
	Bounds        []float64   `yaml:"bounds"`
	Scale         *plot.Scale `yaml:"scale"`
	ScatterPoints int         `yaml:"scatterPoints"`
	Mixture       *MixtureDTO `yaml:"mixture"`
}

// MixtureDTO lists components explicitly or places them on a circle.
type MixtureDTO struct {
	Components []plot.Component `yaml:"components"`
	Circle     *CircleDTO       `yaml:"circle"`
}

// CircleDTO places Count equal normals on a circle around the origin.
type CircleDTO struct {
	Count    int     `yaml:"count"`
	Radius   float64 `yaml:"radius"`
	Variance float64 `yaml:"variance"`
}

// DensityDTO plots a single closed form density.
type DensityDTO struct {
	Output     string       `yaml:"output"`
	Bounds     []float64    `yaml:"bounds"`
	Resolution int          `yaml:"resolution"`
	Scale      *plot.Scale  `yaml:"scale"`
	Gaussian   *GaussianDTO `yaml:"gaussian"`
	Uniform    []float64    `yaml:"uniform"`
	DependsOn  []string     `yaml:"dependsOn"`
}

// GaussianDTO is an isotropic normal.
type GaussianDTO struct {
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Sigma float64 `yaml:"sigma"`
}
