package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"shimcheck/internal/crawler"
	"shimcheck/internal/index"
	"shimcheck/internal/rbi"
	"shimcheck/internal/resolver"

	"github.com/charmbracelet/log"
)

// ErrNoReferenceProvider is returned when the canonical reference group is
// enabled but nothing can serve it.
var ErrNoReferenceProvider = errors.New("canonical reference group enabled without a provider")

// PreconditionError wraps a failed reference check. Nothing has been parsed
// when it is returned.
type PreconditionError struct {
	Err error
}

func (e *PreconditionError) Error() string { return e.Err.Error() }

func (e *PreconditionError) Unwrap() error { return e.Err }

// Registry loads configured groups into an index, in configured order.
type Registry struct {
	groups    []Group
	crawler   *crawler.Crawler
	parser    *rbi.Parser
	reference ReferenceProvider
	logger    *log.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithReference sets the provider of the canonical reference group.
func WithReference(p ReferenceProvider) Option {
	return func(r *Registry) { r.reference = p }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a registry over groups.
func NewRegistry(groups []Group, opts ...Option) *Registry {
	r := &Registry{
		groups:  append([]Group(nil), groups...),
		crawler: crawler.NewCrawler(),
		parser:  rbi.NewParser(),
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Groups returns the configured groups in order.
func (r *Registry) Groups() []Group {
	return append([]Group(nil), r.groups...)
}

// Editable returns the enabled groups an operator is expected to prune.
func (r *Registry) Editable() []Group {
	var out []Group
	for _, g := range r.groups {
		if g.Enabled && g.Editable {
			out = append(out, g)
		}
	}
	return out
}

// Documents enumerates the local documents of g.
func (r *Registry) Documents(g Group) ([]Document, error) {
	files, err := r.crawler.Files(g.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s RBIs in %s: %w", g.Name, g.Path, err)
	}
	docs := make([]Document, 0, len(files))
	for _, f := range files {
		docs = append(docs, Document{Path: f, ID: rbi.Document{Path: f}})
	}
	return docs, nil
}

// HasEditableDocuments reports whether any enabled editable group has at
// least one document.
func (r *Registry) HasEditableDocuments() (bool, error) {
	for _, g := range r.Editable() {
		if g.Remote() {
			continue
		}
		docs, err := r.Documents(g)
		if err != nil {
			return false, err
		}
		if len(docs) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (r *Registry) referenceEnabled() bool {
	for _, g := range r.groups {
		if g.Enabled && g.Remote() {
			return true
		}
	}
	return false
}

// CheckReference verifies the canonical reference precondition. It is a
// no-op when the reference group is disabled.
func (r *Registry) CheckReference(ctx context.Context) error {
	if !r.referenceEnabled() {
		return nil
	}
	if r.reference == nil {
		return ErrNoReferenceProvider
	}
	return r.reference.CheckVersion(ctx)
}

// Load parses every enabled group in order and records its declarations.
// The reference precondition is checked before anything is parsed. A
// document already loaded by an earlier group is not loaded again.
func (r *Registry) Load(ctx context.Context, idx *index.Index, obs Observer) ([]rbi.Warning, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	if err := r.CheckReference(ctx); err != nil {
		return nil, &PreconditionError{Err: err}
	}
	if r.reference != nil && r.referenceEnabled() {
		defer func() {
			if err := r.reference.Close(); err != nil {
				r.logger.Warn("failed to clean up reference documents", "err", err)
			}
		}()
	}

	var warnings []rbi.Warning
	seen := map[string]bool{}
	for gi, g := range r.groups {
		if !g.Enabled {
			continue
		}

		var docs []Document
		var err error
		if g.Remote() {
			docs, err = r.reference.Fetch(ctx)
		} else {
			docs, err = r.Documents(g)
		}
		if err != nil {
			return warnings, err
		}
		if len(docs) == 0 {
			r.logger.Debug("no documents", "group", g.Name, "path", g.Path)
			continue
		}

		obs.LoadingGroup(g, len(docs))
		var stats GroupStats
		for di, doc := range docs {
			if seen[doc.Path] {
				r.logger.Debug("document already loaded", "group", g.Name, "path", doc.Path)
				stats.Skipped++
				continue
			}
			seen[doc.Path] = true

			tree, ws, err := r.parser.ParseFile(ctx, doc.Path, doc.ID)
			if err != nil {
				return warnings, err
			}
			decls := resolver.Resolve(tree, resolver.Origin{Provenance: g.Provenance, Group: gi, Document: di})
			for _, d := range decls {
				idx.Record(d)
			}

			stats.Documents++
			stats.Declarations += len(decls)
			stats.Warnings += len(ws)
			warnings = append(warnings, ws...)
		}
		r.logger.Debug("loaded group", "group", g.Name, "documents", stats.Documents, "declarations", stats.Declarations)
		obs.LoadedGroup(g, stats)
	}
	return warnings, nil
}
