package report

import (
	"io"
	"strings"

	"shimcheck/internal/index"
	"shimcheck/internal/rbi"
)

// Verdict is the outcome of a run.
type Verdict int

const (
	VerdictSuccess Verdict = iota
	VerdictFailure
	VerdictConfigError
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictFailure:
		return "failure"
	default:
		return "config_error"
	}
}

// ExitCode maps the verdict to a process exit status.
func (v Verdict) ExitCode() int {
	if v == VerdictSuccess {
		return 0
	}
	return 1
}

// Styles decorates rendered lines. Every field defaults to the identity.
type Styles struct {
	Warning  func(string) string
	Header   func(string) string
	Location func(string) string
	Remedy   func(string) string
	Success  func(string) string
}

func plain(s string) string { return s }

func (s Styles) withDefaults() Styles {
	for _, f := range []*func(string) string{&s.Warning, &s.Header, &s.Location, &s.Remedy, &s.Success} {
		if *f == nil {
			*f = plain
		}
	}
	return s
}

// Report is rendered output: Summary goes to the informational stream and
// Diagnostics to the error stream.
type Report struct {
	Summary     string
	Diagnostics string
	Verdict     Verdict
}

// Write prints the report to the two streams.
func (r Report) Write(out, errOut io.Writer) error {
	if _, err := io.WriteString(errOut, r.Diagnostics); err != nil {
		return err
	}
	_, err := io.WriteString(out, r.Summary)
	return err
}

// Reporter renders duplicate clusters and parse warnings.
type Reporter struct {
	editable []string
	styles   Styles
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithStyles sets line decorations.
func WithStyles(s Styles) Option {
	return func(r *Reporter) { r.styles = s }
}

// NewReporter creates a reporter. editable names the groups operators are
// asked to prune, e.g. the shim directory and the TODO file.
func NewReporter(editable []string, opts ...Option) *Reporter {
	r := &Reporter{editable: append([]string(nil), editable...)}
	for _, opt := range opts {
		opt(r)
	}
	r.styles = r.styles.withDefaults()
	return r
}

// Render produces the report text and verdict. Clusters fail the run;
// warnings alone never do.
func (r *Reporter) Render(clusters []index.Cluster, warnings []rbi.Warning) Report {
	var diag strings.Builder
	for _, w := range warnings {
		diag.WriteString(r.styles.Warning("Warning: "+w.String()) + "\n")
	}

	if len(clusters) == 0 {
		return Report{
			Summary:     "\n" + r.styles.Success("No duplicates found in shim RBIs") + "\n",
			Diagnostics: diag.String(),
			Verdict:     VerdictSuccess,
		}
	}

	for _, c := range clusters {
		diag.WriteString("\n" + r.styles.Header("Duplicated RBI for "+c.Name+":") + "\n")
		for _, d := range c.Occurrences {
			diag.WriteString(r.styles.Location(" * "+d.Span.String()) + "\n")
		}
	}
	diag.WriteString("\n" + r.styles.Remedy("Please remove the duplicated definitions from "+joinList(r.editable)) + "\n")

	return Report{Diagnostics: diag.String(), Verdict: VerdictFailure}
}

// NothingToCheck is the report of a run without editable documents.
func (r *Reporter) NothingToCheck() Report {
	return Report{
		Summary: r.styles.Success("No shim RBIs to check") + "\n",
		Verdict: VerdictSuccess,
	}
}

// Fatal is the report of a run aborted by a failed precondition.
func (r *Reporter) Fatal(err error) Report {
	lines := strings.Split(err.Error(), "\n")
	for i, l := range lines {
		lines[i] = r.styles.Remedy(l)
	}
	return Report{
		Diagnostics: strings.Join(lines, "\n") + "\n",
		Verdict:     VerdictConfigError,
	}
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return "the editable RBIs"
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
