package ports

import "go.trai.ch/orca/internal/core/domain"

// DefinitionLoader reads a pipeline definition file.
//
//go:generate mockgen -source=definition_loader.go -destination=mocks/mock_definition_loader.go -package=mocks
type DefinitionLoader interface {
	// Load parses the file at path into a hashed pipeline. Pods are hashed
	// as they are built.
	Load(path string) (*domain.Pipeline, error)
}
