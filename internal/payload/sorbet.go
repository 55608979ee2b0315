package payload

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"shimcheck/internal/crawler"
	"shimcheck/internal/rbi"
	"shimcheck/internal/source"

	"golang.org/x/mod/semver"
)

const (
	// MinimumVersion is the first Sorbet release supporting
	// --print=payload-sources.
	MinimumVersion = "0.5.9818"
	// DefaultBaseURL is where payload documents are browsable.
	DefaultBaseURL = "https://github.com/sorbet/sorbet/tree/master/rbi"
)

var versionRe = regexp.MustCompile(`\d+\.\d+\.\d+`)

// VersionError reports a Sorbet too old to print its payload.
type VersionError struct {
	Command  string
	Current  string
	Required string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf(
		"The version of Sorbet used by `%s` does not support `--print=payload-sources`\nCurrent: v%s\nRequired: >= %s",
		e.Command, e.Current, e.Required,
	)
}

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Sorbet serves the canonical reference group from the payload RBIs bundled
// with the Sorbet binary.
type Sorbet struct {
	command    []string
	minVersion string
	baseURL    string
	run        Runner
	crawler    *crawler.Crawler
	dir        string
}

var _ source.ReferenceProvider = (*Sorbet)(nil)

// Option configures a Sorbet provider.
type Option func(*Sorbet)

// WithRunner replaces command execution.
func WithRunner(r Runner) Option {
	return func(s *Sorbet) { s.run = r }
}

// WithMinimumVersion overrides MinimumVersion.
func WithMinimumVersion(v string) Option {
	return func(s *Sorbet) { s.minVersion = strings.TrimPrefix(v, "v") }
}

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(s *Sorbet) { s.baseURL = strings.TrimSuffix(u, "/") }
}

// NewSorbet creates a provider invoking command, e.g. ["bundle", "exec", "srb"].
func NewSorbet(command []string, opts ...Option) *Sorbet {
	if len(command) == 0 {
		command = []string{"srb"}
	}
	s := &Sorbet{
		command:    append([]string(nil), command...),
		minVersion: MinimumVersion,
		baseURL:    DefaultBaseURL,
		run:        execRunner,
		crawler:    crawler.NewCrawler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sorbet) exec(ctx context.Context, args ...string) ([]byte, error) {
	full := append(append([]string(nil), s.command[1:]...), args...)
	return s.run(ctx, s.command[0], full...)
}

// Version returns the installed Sorbet version, without a "v" prefix.
func (s *Sorbet) Version(ctx context.Context) (string, error) {
	out, err := s.exec(ctx, "--version")
	if err != nil {
		return "", fmt.Errorf("failed to read Sorbet version: %w", err)
	}
	v := versionRe.FindString(string(out))
	if v == "" {
		return "", fmt.Errorf("failed to read Sorbet version from %q", strings.TrimSpace(string(out)))
	}
	return v, nil
}

// CheckVersion fails with a *VersionError when Sorbet is older than the
// minimum version.
func (s *Sorbet) CheckVersion(ctx context.Context) error {
	current, err := s.Version(ctx)
	if err != nil {
		return err
	}
	if !semver.IsValid("v" + s.minVersion) {
		return fmt.Errorf("invalid minimum Sorbet version %q", s.minVersion)
	}
	if semver.Compare("v"+current, "v"+s.minVersion) < 0 {
		return &VersionError{
			Command:  strings.Join(s.command, " "),
			Current:  current,
			Required: s.minVersion,
		}
	}
	return nil
}

// Fetch asks Sorbet to print its payload into a temporary directory and
// returns the documents, reported under the base URL.
func (s *Sorbet) Fetch(ctx context.Context) ([]source.Document, error) {
	dir, err := os.MkdirTemp("", "shimcheck-payload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create payload directory: %w", err)
	}
	s.dir = dir

	if _, err := s.exec(ctx, "tc", "--no-config", "--print=payload-sources:"+dir); err != nil {
		return nil, fmt.Errorf("failed to print Sorbet payload: %w", err)
	}

	files, err := s.crawler.Files(dir)
	if err != nil {
		return nil, err
	}
	docs := make([]source.Document, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(dir, filepath.FromSlash(f))
		if err != nil {
			return nil, err
		}
		docs = append(docs, source.Document{
			Path: f,
			ID:   rbi.Document{Path: s.baseURL + "/" + filepath.ToSlash(rel), Remote: true},
		})
	}
	return docs, nil
}

// Close removes the payload directory created by Fetch.
func (s *Sorbet) Close() error {
	if s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	s.dir = ""
	return err
}
