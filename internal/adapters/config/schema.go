package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// PipelineFile is the YAML form of a pipeline definition.
type PipelineFile struct {
	Name        string             `yaml:"name"`
	Version     string             `yaml:"version"`
	Description string             `yaml:"description"`
	Pods        map[string]*PodDTO `yaml:"pods"`
	Nodes       map[string]NodeDTO `yaml:"nodes"`
	Edges       []EdgeDTO          `yaml:"edges"`
}

// PodDTO is a reusable pod definition.
type PodDTO struct {
	Name            string            `yaml:"name"`
	Version         string            `yaml:"version"`
	Description     string            `yaml:"description"`
	SourceCommitURL string            `yaml:"source_commit_url"`
	Image           string            `yaml:"image"`
	Command         []string          `yaml:"command"`
	Env             map[string]string `yaml:"env"`
	Inputs          []InputDTO        `yaml:"inputs"`
	Outputs         []OutputDTO       `yaml:"outputs"`
	OutputDir       string            `yaml:"output_dir"`
	Resources       ResourcesDTO      `yaml:"resources"`
}

// InputDTO declares an input slot.
type InputDTO struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Optional bool   `yaml:"optional"`
}

// OutputDTO declares an output slot.
type OutputDTO struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// ResourcesDTO holds the recommended execution parameters.
type ResourcesDTO struct {
	CPUs        float64 `yaml:"cpus"`
	MemoryBytes uint64  `yaml:"memory_bytes"`
	GPU         *GPUDTO `yaml:"gpu"`
	Timeout     string  `yaml:"timeout"`
}

// GPUDTO describes an accelerator requirement.
type GPUDTO struct {
	Model       string `yaml:"model"`
	MemoryBytes uint64 `yaml:"memory_bytes"`
	Count       uint16 `yaml:"count"`
}

// NodeDTO binds a pod into the pipeline.
type NodeDTO struct {
	Pod    string                `yaml:"pod"`
	Inputs map[string]BindingDTO `yaml:"inputs"`
}

// BindingDTO binds one input slot: either a literal value or an upstream
// "node.slot" output. A bare scalar or sequence is shorthand for a value.
type BindingDTO struct {
	Value    any
	HasValue bool
	From     string
}

// UnmarshalYAML accepts {value: ...}, {from: node.slot} or a bare literal.
func (b *BindingDTO) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		b.HasValue = true
		return n.Decode(&b.Value)
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "value":
			b.HasValue = true
			if err := val.Decode(&b.Value); err != nil {
				return err
			}
		case "from":
			if err := val.Decode(&b.From); err != nil {
				return err
			}
		default:
			return fmt.Errorf("line %d: unknown binding key %q, expected value or from", key.Line, key.Value)
		}
	}
	return nil
}

// EdgeDTO is the explicit edge form.
type EdgeDTO struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}
