package source

import (
	"context"

	"shimcheck/internal/rbi"
	"shimcheck/internal/resolver"
)

// Group is an ordered source of RBI documents sharing one provenance.
type Group struct {
	Name       string              `yaml:"name" json:"name"`
	Label      string              `yaml:"label" json:"label"`
	Provenance resolver.Provenance `yaml:"provenance" json:"provenance"`
	Path       string              `yaml:"path" json:"path"`
	Enabled    bool                `yaml:"enabled" json:"enabled"`
	// Editable groups are the ones an operator is expected to prune.
	Editable bool `yaml:"editable" json:"editable"`
}

// Remote reports whether the group is served by a ReferenceProvider rather
// than by local files.
func (g Group) Remote() bool {
	return g.Provenance == resolver.CanonicalReference
}

// Document is one file to parse, with the identity it is reported under.
type Document struct {
	Path string
	ID   rbi.Document
}

// ReferenceProvider serves the canonical reference group.
type ReferenceProvider interface {
	// CheckVersion fails when the external tool cannot produce the
	// reference documents.
	CheckVersion(ctx context.Context) error
	// Fetch materializes the reference documents locally.
	Fetch(ctx context.Context) ([]Document, error)
	// Close releases anything Fetch created.
	Close() error
}

// GroupStats summarizes one loaded group.
type GroupStats struct {
	Documents    int `json:"documents"`
	Declarations int `json:"declarations"`
	Warnings     int `json:"warnings"`
	Skipped      int `json:"skipped"`
}

// Observer is told about group loading progress.
type Observer interface {
	LoadingGroup(g Group, documents int)
	LoadedGroup(g Group, stats GroupStats)
}

type nopObserver struct{}

func (nopObserver) LoadingGroup(Group, int)       {}
func (nopObserver) LoadedGroup(Group, GroupStats) {}
