package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"shimcheck/internal/config"
	"shimcheck/internal/index"
	"shimcheck/internal/payload"
	"shimcheck/internal/rbi"
	"shimcheck/internal/report"
	"shimcheck/internal/resolver"
	"shimcheck/internal/source"
	"shimcheck/internal/storage"

	"github.com/charmbracelet/log"
)

// Checker runs one duplicate check over the configured RBI groups.
type Checker struct {
	cfg      *config.Config
	registry *source.Registry
	reporter *report.Reporter
	editable map[resolver.Provenance]bool
	out      io.Writer
	logger   *log.Logger
	store    storage.RunStore
}

type options struct {
	reference source.ReferenceProvider
	styles    report.Styles
	out       io.Writer
	logger    *log.Logger
	store     storage.RunStore
}

// Option configures a Checker.
type Option func(*options)

// WithReference replaces the Sorbet payload provider.
func WithReference(p source.ReferenceProvider) Option {
	return func(o *options) { o.reference = p }
}

// WithStyles sets the report decorations.
func WithStyles(s report.Styles) Option {
	return func(o *options) { o.styles = s }
}

// WithOutput sets where progress lines go. Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithLogger sets the logger for debug output. Defaults to discarding.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStore archives runs in s instead of opening the configured database.
func WithStore(s storage.RunStore) Option {
	return func(o *options) { o.store = s }
}

// NewChecker wires a checker from cfg.
func NewChecker(cfg *config.Config, opts ...Option) *Checker {
	o := options{out: io.Discard, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.reference == nil && cfg.Payload.Enabled {
		o.reference = payload.NewSorbet(cfg.Payload.Command,
			payload.WithMinimumVersion(cfg.Payload.MinVersion),
			payload.WithBaseURL(cfg.Payload.BaseURL),
		)
	}

	var regOpts []source.Option
	regOpts = append(regOpts, source.WithLogger(o.logger))
	if o.reference != nil {
		regOpts = append(regOpts, source.WithReference(o.reference))
	}
	registry := source.NewRegistry(cfg.Groups(), regOpts...)

	editable := map[resolver.Provenance]bool{}
	for _, g := range registry.Editable() {
		editable[g.Provenance] = true
	}

	return &Checker{
		cfg:      cfg,
		registry: registry,
		reporter: report.NewReporter(cfg.EditablePaths(), report.WithStyles(o.styles)),
		editable: editable,
		out:      o.out,
		logger:   o.logger,
		store:    o.store,
	}
}

// Run checks the configured groups and returns the rendered report. Failed
// preconditions yield a config-error report, not an error; errors are
// reserved for IO failures.
func (c *Checker) Run(ctx context.Context) (report.Report, error) {
	run := report.NewRunReport()

	ok, err := c.registry.HasEditableDocuments()
	if err != nil {
		return report.Report{}, err
	}
	if !ok {
		c.logger.Debug("no editable documents", "paths", c.cfg.EditablePaths())
		rep := c.reporter.NothingToCheck()
		return rep, c.saveRunReport(run, rep.Verdict)
	}

	idx := index.New()
	warnings, err := c.loadStage(ctx, run, idx)
	if err != nil {
		var perr *source.PreconditionError
		if errors.As(err, &perr) {
			c.logger.Debug("reference precondition failed", "err", perr.Err)
			rep := c.reporter.Fatal(perr)
			return rep, c.saveRunReport(run, rep.Verdict)
		}
		return report.Report{}, err
	}

	clusters := c.analyzeStage(run, idx)
	rep := c.reporter.Render(clusters, warnings)

	for _, w := range warnings {
		run.AddSignal("parse_warning", "load", "warning", w.Message, w.Span.String())
	}
	for _, cl := range clusters {
		run.AddSignal("duplicate", "analyze", "critical", "Duplicated RBI for "+cl.Name, cl.Occurrences[0].Span.String())
	}

	if err := c.archiveStage(ctx, run, idx, clusters, warnings, rep.Verdict); err != nil {
		return rep, err
	}
	return rep, c.saveRunReport(run, rep.Verdict)
}

func (c *Checker) loadStage(ctx context.Context, run *report.RunReport, idx *index.Index) ([]rbi.Warning, error) {
	h := run.BeginStage("load")
	obs := &progress{out: c.out}
	warnings, err := c.registry.Load(ctx, idx, obs)
	run.EndStage(h, map[string]float64{
		"documents":    float64(obs.total.Documents),
		"declarations": float64(obs.total.Declarations),
		"warnings":     float64(obs.total.Warnings),
		"skipped":      float64(obs.total.Skipped),
	}, obs.groups, err)
	return warnings, err
}

func (c *Checker) analyzeStage(run *report.RunReport, idx *index.Index) []index.Cluster {
	h := run.BeginStage("analyze")
	fmt.Fprint(c.out, "Looking for duplicates... ")
	raw := idx.Finalize()
	clusters := raw
	if c.cfg.Scope != config.ScopeAll {
		clusters = Relevant(raw, c.editable)
	}
	fmt.Fprintln(c.out, " Done")
	c.logger.Debug("finalized index", "names", len(idx.Names()), "raw", len(raw), "reported", len(clusters))
	run.EndStage(h, map[string]float64{
		"names":    float64(len(idx.Names())),
		"raw":      float64(len(raw)),
		"reported": float64(len(clusters)),
	}, nil, nil)
	return clusters
}

func (c *Checker) archiveStage(ctx context.Context, run *report.RunReport, idx *index.Index, clusters []index.Cluster, warnings []rbi.Warning, v report.Verdict) error {
	store := c.store
	if store == nil {
		if c.cfg.Output.DB == "" {
			return nil
		}
		s, err := storage.NewSQLiteStore(c.cfg.Output.DB)
		if err != nil {
			return fmt.Errorf("failed to open run archive %s: %w", c.cfg.Output.DB, err)
		}
		defer s.Close()
		store = s
	}

	h := run.BeginStage("archive")
	var decls []resolver.Declaration
	for _, name := range idx.Names() {
		decls = append(decls, idx.Occurrences(name)...)
	}
	id, err := store.SaveRun(ctx, storage.Run{
		Verdict:      v.String(),
		Declarations: decls,
		Clusters:     clusters,
		Warnings:     warnings,
	})
	run.EndStage(h, map[string]float64{"run_id": float64(id)}, nil, err)
	if err != nil {
		return fmt.Errorf("failed to archive run: %w", err)
	}
	c.logger.Debug("archived run", "id", id, "declarations", len(decls))
	return nil
}

func (c *Checker) saveRunReport(run *report.RunReport, v report.Verdict) error {
	if c.cfg.Output.ReportJSON == "" {
		return nil
	}
	run.Finalize(v)
	if err := run.Save(c.cfg.Output.ReportJSON); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}
	return nil
}

// progress prints one line per loaded group.
type progress struct {
	out    io.Writer
	groups []string
	total  source.GroupStats
}

func (p *progress) LoadingGroup(g source.Group, _ int) {
	if g.Remote() {
		fmt.Fprintf(p.out, "Loading %s... ", g.Label)
	} else {
		fmt.Fprintf(p.out, "Loading %s from %s... ", g.Label, g.Path)
	}
	p.groups = append(p.groups, g.Name)
}

func (p *progress) LoadedGroup(_ source.Group, stats source.GroupStats) {
	fmt.Fprintln(p.out, " Done")
	p.total.Documents += stats.Documents
	p.total.Declarations += stats.Declarations
	p.total.Warnings += stats.Warnings
	p.total.Skipped += stats.Skipped
}
