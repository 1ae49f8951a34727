// Package config loads pipeline definitions and orca settings from YAML.
package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.DefinitionLoader for YAML pipeline files.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a Loader reporting warnings to logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load reads the pipeline file at path.
func (l *Loader) Load(path string) (*domain.Pipeline, error) {
	var file PipelineFile
	if err := readAndUnmarshalYAML(path, &file); err != nil {
		return nil, zerr.With(err, "path", path)
	}

	p, err := l.Build(&file)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return p, nil
}

// Build turns a parsed file into a hashed pipeline.
func (l *Loader) Build(file *PipelineFile) (*domain.Pipeline, error) {
	pods := make(map[string]*domain.Pod, len(file.Pods))
	for _, key := range slices.Sorted(maps.Keys(file.Pods)) {
		pod, err := buildPod(key, file.Pods[key])
		if err != nil {
			return nil, zerr.With(err, "pod", key)
		}
		pods[key] = pod
	}

	used := make(map[string]bool, len(pods))
	nodes := make([]domain.PipelineNode, 0, len(file.Nodes))
	edges := make([]domain.Edge, 0, len(file.Edges))
	seen := make(map[domain.Edge]bool)
	addEdge := func(e domain.Edge) {
		if !seen[e] {
			seen[e] = true
			edges = append(edges, e)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(file.Nodes)) {
		dto := file.Nodes[name]
		pod, ok := pods[dto.Pod]
		if !ok {
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrUnknownPod, "node references an undefined pod"), "pod", dto.Pod), "node", name)
		}
		used[dto.Pod] = true

		literals := make(map[string]any)
		for _, slot := range slices.Sorted(maps.Keys(dto.Inputs)) {
			b := dto.Inputs[slot]
			switch {
			case b.HasValue && b.From != "":
				return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrDuplicateBinding, "binding sets both value and from"), "slot", slot), "node", name)
			case b.From != "":
				from, err := domain.ParseSlotRef(b.From)
				if err != nil {
					return nil, zerr.With(zerr.With(err, "slot", slot), "node", name)
				}
				addEdge(domain.Edge{From: from, To: domain.SlotRef{Node: name, Slot: slot}})
			case b.HasValue:
				if b.Value == nil {
					return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidPipeline, "literal value is null"), "slot", slot), "node", name)
				}
				literals[slot] = b.Value
			default:
				return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidPipeline, "binding needs value or from"), "slot", slot), "node", name)
			}
		}

		nodes = append(nodes, domain.PipelineNode{Name: name, Pod: pod, Literals: literals})
	}

	for i, e := range file.Edges {
		from, err := domain.ParseSlotRef(e.From)
		if err != nil {
			return nil, zerr.With(err, "edge", i)
		}
		to, err := domain.ParseSlotRef(e.To)
		if err != nil {
			return nil, zerr.With(err, "edge", i)
		}
		addEdge(domain.Edge{From: from, To: to})
	}

	for _, key := range slices.Sorted(maps.Keys(pods)) {
		if !used[key] && l.Logger != nil {
			l.Logger.Warn(fmt.Sprintf("pod %q is defined but no node uses it", key))
		}
	}

	var annotation *domain.Annotation
	if file.Name != "" || file.Version != "" || file.Description != "" {
		annotation = &domain.Annotation{Name: file.Name, Version: file.Version, Description: file.Description}
	}

	return domain.NewPipeline(annotation, nodes, edges)
}

func buildPod(key string, dto *PodDTO) (*domain.Pod, error) {
	if dto == nil {
		return nil, zerr.Wrap(domain.ErrInvalidPod, "empty pod definition")
	}

	name := dto.Name
	if strings.TrimSpace(name) == "" {
		name = key
	}

	def := domain.Pod{
		Annotation:      &domain.Annotation{Name: name, Version: dto.Version, Description: dto.Description},
		SourceCommitURL: dto.SourceCommitURL,
		Image:           dto.Image,
		Command:         dto.Command,
		Env:             dto.Env,
		OutputDir:       dto.OutputDir,
		Resources: domain.Resources{
			CPUs:        dto.Resources.CPUs,
			MemoryBytes: dto.Resources.MemoryBytes,
		},
	}
	for _, in := range dto.Inputs {
		def.Inputs = append(def.Inputs, domain.InputSlot(in))
	}
	for _, out := range dto.Outputs {
		def.Outputs = append(def.Outputs, domain.OutputSlot(out))
	}
	if gpu := dto.Resources.GPU; gpu != nil {
		def.Resources.GPU = &domain.GPURequirement{Model: gpu.Model, MemoryBytes: gpu.MemoryBytes, Count: gpu.Count}
	}
	if dto.Resources.Timeout != "" {
		timeout, err := time.ParseDuration(dto.Resources.Timeout)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidPod, "invalid timeout"), "timeout", dto.Resources.Timeout)
		}
		def.Resources.Timeout = timeout
	}

	return domain.NewPod(def)
}

func readAndUnmarshalYAML[T any](path string, target *T) error {
	// #nosec G304 -- path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return zerr.Wrap(domain.ErrConfigReadFailed, err.Error())
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return zerr.Wrap(domain.ErrConfigParseFailed, err.Error())
	}

	return nil
}
