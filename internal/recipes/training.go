package recipes

import (
	"fmt"
	"strconv"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

const (
	// DefaultMasterAddr is the rendezvous host of rank 0.
	DefaultMasterAddr = "127.0.0.1"
	// DefaultMasterPort is the rendezvous port of rank 0.
	DefaultMasterPort = 8888
)

// DistributedTraining launches one torchrun process per node of a multi-node job.
type DistributedTraining struct {
	Prefix       string
	Script       string
	Nodes        int
	ProcsPerNode int
	MasterAddr   string
	MasterPort   int
	Dependencies []string
	Environment  map[string]string
	// Torchrun is the launcher executable. It defaults to "torchrun".
	Torchrun string
}

// NodeName is the task that starts rank on this machine.
func (d DistributedTraining) NodeName(rank int) string {
	return domain.JoinTaskName(d.Prefix, fmt.Sprintf("train_node_%06d", rank))
}

// DistributedTrainingTasks registers a command task per node rank plus a grouping task.
// Every node task must be started on its own machine; the grouping task is only useful for a single node.
func (t *Toolbox) DistributedTrainingTasks(reg ports.Registry, d DistributedTraining) (domain.TaskHandle, error) {
	if d.Script == "" {
		return domain.TaskHandle{}, invalid("training", "script is required")
	}
	if d.Nodes <= 0 || d.ProcsPerNode <= 0 {
		return domain.TaskHandle{}, invalid("training", "nodes and procsPerNode must be positive")
	}
	if d.MasterAddr == "" {
		d.MasterAddr = DefaultMasterAddr
	}
	if d.MasterPort == 0 {
		d.MasterPort = DefaultMasterPort
	}
	if d.Torchrun == "" {
		d.Torchrun = "torchrun"
	}

	nodes := make([]string, 0, d.Nodes)
	for rank := range d.Nodes {
		name := d.NodeName(rank)
		cmd := domain.Command{
			Name: name,
			Args: []string{
				d.Torchrun,
				"--nproc_per_node=" + strconv.Itoa(d.ProcsPerNode),
				"--nnodes=" + strconv.Itoa(d.Nodes),
				"--node_rank=" + strconv.Itoa(rank),
				"--master_addr=" + d.MasterAddr,
				"--master_port=" + strconv.Itoa(d.MasterPort),
				d.Script,
			},
			Environment: cloneEnv(d.Environment),
		}
		if _, err := reg.CreateCommandTask(name, withDeps(d.Dependencies), t.Action(cmd)); err != nil {
			return domain.TaskHandle{}, err
		}
		nodes = append(nodes, name)
	}
	return reg.CreateCommandTask(domain.JoinTaskName(d.Prefix, AllTaskName), nodes, nil)
}

// Rendezvous selects c10d rendezvous instead of torchrun's standalone mode.
type Rendezvous struct {
	ID   int
	Port int
}

// StandaloneTraining trains on this machine up to a sequence of checkpoints.
type StandaloneTraining struct {
	Prefix       string
	Script       string
	ProcsPerNode int
	// Checkpoints lists the example counts at which the script saves, in increasing order.
	Checkpoints []int
	// Modules and Accumulators name the files the script saves at every checkpoint.
	// Each becomes a file task, so a checkpoint already on disk is not trained again.
	Modules      []string
	Accumulators []string
	Rendezvous   *Rendezvous
	Dependencies []string
	Environment  map[string]string
	Torchrun     string
}

func (s StandaloneTraining) checkpointDir(index int) string {
	return domain.JoinTaskName(s.Prefix, fmt.Sprintf("checkpoint_%04d", index))
}

// CheckpointName is the task that trains up to checkpoint index. Index 0 is the untrained state.
func (s StandaloneTraining) CheckpointName(index int) string {
	return domain.JoinTaskName(s.checkpointDir(index), "train_standalone")
}

// ModuleName is the file the script saves for module at checkpoint index.
func (s StandaloneTraining) ModuleName(index int, module string) string {
	return domain.JoinTaskName(s.checkpointDir(index), "module_"+module+".pt")
}

// AccumulatorName is the file the script saves for the accumulated copy of module at checkpoint index.
func (s StandaloneTraining) AccumulatorName(index int, module string) string {
	return domain.JoinTaskName(s.checkpointDir(index), "accumulated_"+module+".pt")
}

// StandaloneTrainingTasks registers, per checkpoint, a file task for every module and
// accumulator file plus a command task that always trains. <prefix>/train_standalone
// trains to the last checkpoint.
func (t *Toolbox) StandaloneTrainingTasks(reg ports.Registry, s StandaloneTraining) (domain.TaskHandle, error) {
	if s.Script == "" {
		return domain.TaskHandle{}, invalid("training", "script is required")
	}
	if s.ProcsPerNode <= 0 {
		return domain.TaskHandle{}, invalid("training", "procsPerNode must be positive")
	}
	if len(s.Checkpoints) == 0 || s.Checkpoints[0] <= 0 {
		return domain.TaskHandle{}, invalid("training", "checkpoints must start with a positive example count")
	}
	if s.Torchrun == "" {
		s.Torchrun = "torchrun"
	}

	targets := append([]int{0}, s.Checkpoints...)
	for i, examples := range targets {
		var files []string
		for _, m := range s.Modules {
			files = append(files, s.ModuleName(i, m))
		}
		for _, m := range s.Accumulators {
			files = append(files, s.AccumulatorName(i, m))
		}
		for _, file := range files {
			if _, err := reg.CreateFileTask(file, withDeps(s.Dependencies), t.Action(s.command(file, examples))); err != nil {
				return domain.TaskHandle{}, err
			}
		}

		name := s.CheckpointName(i)
		if _, err := reg.CreateCommandTask(name, withDeps(s.Dependencies), t.Action(s.command(name, examples))); err != nil {
			return domain.TaskHandle{}, err
		}
	}

	name := domain.JoinTaskName(s.Prefix, "train_standalone")
	last := targets[len(targets)-1]
	return reg.CreateCommandTask(name, withDeps(s.Dependencies), t.Action(s.command(name, last)))
}

func (s StandaloneTraining) command(name string, examples int) domain.Command {
	args := []string{
		s.Torchrun,
		"--nnodes=1",
		"--nproc_per_node=" + strconv.Itoa(s.ProcsPerNode),
	}
	if s.Rendezvous != nil {
		args = append(args,
			"--rdzv_endpoint=localhost:"+strconv.Itoa(s.Rendezvous.Port),
			"--rdzv_backend=c10d",
			"--rdzv_id="+strconv.Itoa(s.Rendezvous.ID),
		)
	} else {
		args = append(args, "--standalone")
	}
	args = append(args, s.Script, "--target_checkpoint_examples", strconv.Itoa(examples))
	return domain.Command{Name: name, Args: args, Environment: cloneEnv(s.Environment)}
}
