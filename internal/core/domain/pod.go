package domain

import (
	"maps"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"go.trai.ch/zerr"
)

var slotNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Annotation carries human-facing metadata. It is never part of an identity.
type Annotation struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// InputSlot is a named input of a pod.
type InputSlot struct {
	Name string `json:"name"`
	// Path is where the bound value is materialized, relative to the work directory.
	Path     string `json:"path,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// OutputSlot is a named output of a pod, collected from Path after a successful run.
type OutputSlot struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// GPURequirement describes the accelerators a pod needs.
type GPURequirement struct {
	Model       string `json:"model"`
	MemoryBytes uint64 `json:"memory_bytes,omitempty"`
	Count       uint16 `json:"count"`
}

// Resources are the recommended execution parameters of a pod.
type Resources struct {
	CPUs        float64         `json:"cpus,omitempty"`
	MemoryBytes uint64          `json:"memory_bytes,omitempty"`
	GPU         *GPURequirement `json:"gpu,omitempty"`
	// Timeout bounds a single execution; the executor reports expiry as a failure.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Pod is an atomic unit of computation.
//
// A Pod returned by NewPod is normalized and hashed and must not be mutated.
// Its digest covers everything except the annotation; binding values live on
// the pipeline, so the digest is the pod's shape and is stable across pipelines.
type Pod struct {
	Annotation      *Annotation       `json:"-"`
	SourceCommitURL string            `json:"source_commit_url,omitempty"`
	Image           string            `json:"image,omitempty"`
	Command         []string          `json:"command"`
	Env             map[string]string `json:"env,omitempty"`
	Inputs          []InputSlot       `json:"inputs,omitempty"`
	Outputs         []OutputSlot      `json:"outputs,omitempty"`
	OutputDir       string            `json:"output_dir,omitempty"`
	Resources       Resources         `json:"resources,omitempty"`

	digest    Digest
	canonical []byte
}

// NewPod normalizes and validates def and computes its digest.
func NewPod(def Pod) (*Pod, error) {
	p := normalizePod(def)
	if err := p.validate(); err != nil {
		return nil, err
	}

	b, err := encodeEnvelope(ClassPod, p)
	if err != nil {
		return nil, err
	}
	p.canonical = b
	p.digest = Hash(b)
	return p, nil
}

// DecodePod reconstructs a pod from its canonical bytes.
func DecodePod(b []byte) (*Pod, error) {
	def, err := decodeEnvelope[Pod](ClassPod, b)
	if err != nil {
		return nil, err
	}
	return NewPod(def)
}

// Digest returns the pod's identity.
func (p *Pod) Digest() Digest {
	return p.digest
}

// Canonical returns the canonical bytes the digest was computed from.
func (p *Pod) Canonical() []byte {
	return slices.Clone(p.canonical)
}

// Name returns the annotation name, or the short digest for unannotated pods.
func (p *Pod) Name() string {
	if p.Annotation != nil && p.Annotation.Name != "" {
		return p.Annotation.Name
	}
	return p.digest.Short()
}

// Input returns the input slot with the given name.
func (p *Pod) Input(name string) (InputSlot, bool) {
	i, ok := slices.BinarySearchFunc(p.Inputs, name, func(s InputSlot, n string) int {
		return strings.Compare(s.Name, n)
	})
	if !ok {
		return InputSlot{}, false
	}
	return p.Inputs[i], true
}

// Output returns the output slot with the given name.
func (p *Pod) Output(name string) (OutputSlot, bool) {
	i, ok := slices.BinarySearchFunc(p.Outputs, name, func(s OutputSlot, n string) int {
		return strings.Compare(s.Name, n)
	})
	if !ok {
		return OutputSlot{}, false
	}
	return p.Outputs[i], true
}

// CommandSpec returns what an executor needs to run the pod for the given node.
func (p *Pod) CommandSpec(node string) CommandSpec {
	return CommandSpec{
		Pod:       p.digest,
		Node:      node,
		Image:     p.Image,
		Command:   slices.Clone(p.Command),
		Env:       maps.Clone(p.Env),
		Outputs:   slices.Clone(p.Outputs),
		OutputDir: p.OutputDir,
		Resources: p.Resources,
	}
}

func normalizePod(def Pod) *Pod {
	p := &Pod{
		SourceCommitURL: strings.TrimSpace(def.SourceCommitURL),
		Image:           strings.TrimSpace(def.Image),
		OutputDir:       cleanRelPath(def.OutputDir),
		Resources:       def.Resources,
	}

	if def.Annotation != nil {
		a := *def.Annotation
		a.Name = strings.TrimSpace(a.Name)
		a.Version = strings.TrimSpace(a.Version)
		a.Description = strings.TrimSpace(a.Description)
		p.Annotation = &a
	}

	p.Command = make([]string, len(def.Command))
	for i, arg := range def.Command {
		p.Command[i] = strings.TrimSpace(arg)
	}

	if len(def.Env) > 0 {
		p.Env = make(map[string]string, len(def.Env))
		for k, v := range def.Env {
			p.Env[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}

	p.Inputs = make([]InputSlot, len(def.Inputs))
	for i, in := range def.Inputs {
		p.Inputs[i] = InputSlot{
			Name:     strings.TrimSpace(in.Name),
			Path:     cleanRelPath(in.Path),
			Optional: in.Optional,
		}
	}
	slices.SortStableFunc(p.Inputs, func(a, b InputSlot) int { return strings.Compare(a.Name, b.Name) })

	p.Outputs = make([]OutputSlot, len(def.Outputs))
	for i, out := range def.Outputs {
		p.Outputs[i] = OutputSlot{
			Name: strings.TrimSpace(out.Name),
			Path: cleanRelPath(out.Path),
		}
	}
	slices.SortStableFunc(p.Outputs, func(a, b OutputSlot) int { return strings.Compare(a.Name, b.Name) })

	if def.Resources.GPU != nil {
		gpu := *def.Resources.GPU
		gpu.Model = strings.TrimSpace(gpu.Model)
		p.Resources.GPU = &gpu
	}

	return p
}

//nolint:cyclop // flat list of structural checks
func (p *Pod) validate() error {
	if len(p.Command) == 0 || p.Command[0] == "" {
		return zerr.Wrap(ErrInvalidPod, "command must not be empty")
	}

	for i, in := range p.Inputs {
		if !slotNamePattern.MatchString(in.Name) {
			return zerr.With(zerr.Wrap(ErrInvalidPod, "invalid input slot name"), "slot", in.Name)
		}
		if i > 0 && p.Inputs[i-1].Name == in.Name {
			return zerr.With(zerr.Wrap(ErrInvalidPod, "input slot declared twice"), "slot", in.Name)
		}
		if in.Path != "" && !filepath.IsLocal(in.Path) {
			return zerr.With(zerr.Wrap(ErrInvalidInputPath, "invalid input path"), "slot", in.Name)
		}
	}

	for i, out := range p.Outputs {
		if !slotNamePattern.MatchString(out.Name) {
			return zerr.With(zerr.Wrap(ErrInvalidPod, "invalid output slot name"), "slot", out.Name)
		}
		if i > 0 && p.Outputs[i-1].Name == out.Name {
			return zerr.With(zerr.Wrap(ErrInvalidPod, "output slot declared twice"), "slot", out.Name)
		}
		if out.Path == "" || !filepath.IsLocal(out.Path) {
			return zerr.With(zerr.Wrap(ErrInvalidInputPath, "invalid output path"), "slot", out.Name)
		}
	}

	if p.OutputDir != "" && !filepath.IsLocal(p.OutputDir) {
		return zerr.With(zerr.Wrap(ErrInvalidInputPath, "invalid output directory"), "path", p.OutputDir)
	}

	r := p.Resources
	if r.CPUs < 0 || r.Timeout < 0 {
		return zerr.Wrap(ErrInvalidPod, "resources must not be negative")
	}
	if r.GPU != nil && (r.GPU.Count == 0 || r.GPU.Model == "") {
		return zerr.Wrap(ErrInvalidPod, "gpu requirement needs a model and a count")
	}

	return nil
}

func cleanRelPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(p))
}
