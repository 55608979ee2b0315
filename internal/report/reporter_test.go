package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shimcheck/internal/index"
	"shimcheck/internal/rbi"
	"shimcheck/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(path string, line, col, endCol int) resolver.Declaration {
	return resolver.Declaration{Span: rbi.Span{
		Document: rbi.Document{Path: path},
		Start:    rbi.Position{Line: line, Column: col},
		End:      rbi.Position{Line: line, Column: endCol},
	}}
}

func TestReporter_Clusters(t *testing.T) {
	r := NewReporter([]string{"sorbet/rbi/shims", "sorbet/rbi/todo.rbi"})
	rep := r.Render([]index.Cluster{
		{Name: "::Bar#bar", Occurrences: []resolver.Declaration{
			at("sorbet/rbi/shims/bar.rbi", 2, 2, 14),
			at("sorbet/rbi/dsl/bar.rbi", 2, 2, 14),
		}},
		{Name: "::Object", Occurrences: []resolver.Declaration{
			{Span: rbi.Span{Document: rbi.Document{Path: "https://github.com/sorbet/sorbet/tree/master/rbi/core/object.rbi", Remote: true}, Start: rbi.Position{Line: 27}}},
			at("sorbet/rbi/shims/core/object.rbi", 1, 0, 17),
		}},
	}, nil)

	assert.Equal(t, VerdictFailure, rep.Verdict)
	assert.Equal(t, 1, rep.Verdict.ExitCode())
	assert.Empty(t, rep.Summary)
	assert.Equal(t, `
Duplicated RBI for ::Bar#bar:
 * sorbet/rbi/shims/bar.rbi:2:2-2:14
 * sorbet/rbi/dsl/bar.rbi:2:2-2:14

Duplicated RBI for ::Object:
 * https://github.com/sorbet/sorbet/tree/master/rbi/core/object.rbi#L27
 * sorbet/rbi/shims/core/object.rbi:1:0-1:17

Please remove the duplicated definitions from sorbet/rbi/shims and sorbet/rbi/todo.rbi
`, rep.Diagnostics)
}

func TestReporter_NoDuplicates(t *testing.T) {
	r := NewReporter([]string{"sorbet/rbi/shims"})
	warning := rbi.Warning{
		Span:    rbi.Span{Document: rbi.Document{Path: "sorbet/rbi/shims/foo.rbi"}, Start: rbi.Position{Line: 2, Column: 2}, End: rbi.Position{Line: 2, Column: 13}},
		Message: "Unsupported block node type `foo`",
	}
	rep := r.Render(nil, []rbi.Warning{warning})

	assert.Equal(t, VerdictSuccess, rep.Verdict)
	assert.Equal(t, "\nNo duplicates found in shim RBIs\n", rep.Summary)
	assert.Equal(t, "Warning: Unsupported block node type `foo` (sorbet/rbi/shims/foo.rbi:2:2-2:13)\n", rep.Diagnostics)
}

func TestReporter_NothingToCheckAndFatal(t *testing.T) {
	r := NewReporter(nil)
	rep := r.NothingToCheck()
	assert.Equal(t, "No shim RBIs to check\n", rep.Summary)
	assert.Equal(t, VerdictSuccess, rep.Verdict)

	rep = r.Fatal(errors.New("Current: v0.5.9760"))
	assert.Equal(t, VerdictConfigError, rep.Verdict)
	assert.Equal(t, "Current: v0.5.9760\n", rep.Diagnostics)
	assert.Equal(t, 1, rep.Verdict.ExitCode())
}

func TestReporter_Styles(t *testing.T) {
	upper := func(s string) string { return strings.ToUpper(s) }
	r := NewReporter([]string{"shims"}, WithStyles(Styles{Header: upper}))
	rep := r.Render([]index.Cluster{{Name: "::Foo", Occurrences: []resolver.Declaration{at("a.rbi", 1, 0, 3), at("b.rbi", 1, 0, 3)}}}, nil)
	assert.Contains(t, rep.Diagnostics, "DUPLICATED RBI FOR ::FOO:")
	assert.Contains(t, rep.Diagnostics, " * a.rbi:1:0-1:3")
}

func TestReport_Write(t *testing.T) {
	var out, errOut bytes.Buffer
	rep := Report{Summary: "ok\n", Diagnostics: "bad\n"}
	require.NoError(t, rep.Write(&out, &errOut))
	assert.Equal(t, "ok\n", out.String())
	assert.Equal(t, "bad\n", errOut.String())
}

func TestJoinList(t *testing.T) {
	assert.Equal(t, "the editable RBIs", joinList(nil))
	assert.Equal(t, "a", joinList([]string{"a"}))
	assert.Equal(t, "a and b", joinList([]string{"a", "b"}))
	assert.Equal(t, "a, b and c", joinList([]string{"a", "b", "c"}))
}

func TestRunReport_Save(t *testing.T) {
	r := NewRunReport()
	h := r.BeginStage("load")
	r.EndStage(h, map[string]float64{"documents": 3, " ": 1}, []string{"", "shims"}, nil)
	h = r.BeginStage("reference")
	r.EndStage(h, nil, nil, errors.New("too old"))
	r.AddSignal("parse_warning", "load", "Warning", "Unsupported node type `if`", "a.rbi:1:0-2:3")
	r.AddSignal("duplicate", "analyze", "critical", "Duplicated RBI for ::Foo", "")
	r.AddSignal("", "analyze", "critical", "dropped", "")
	r.Finalize(VerdictFailure)

	path := filepath.Join(t.TempDir(), "out", "run.json")
	require.NoError(t, r.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded RunReport
	require.NoError(t, json.Unmarshal(data, &loaded))

	require.Len(t, loaded.Stages, 2)
	assert.Equal(t, map[string]float64{"documents": 3}, loaded.Stages[0].Counters)
	assert.Equal(t, []string{"shims"}, loaded.Stages[0].Notes)
	assert.Equal(t, "error", loaded.Stages[1].Status)

	require.Len(t, loaded.Signals, 2)
	assert.Equal(t, "duplicate", loaded.Signals[0].Code)
	assert.Equal(t, "warning", loaded.Signals[1].Severity)

	assert.Equal(t, 1, loaded.Summary.FailedStages)
	assert.Equal(t, "failure", loaded.Summary.Verdict)
	assert.Equal(t, 1, loaded.Summary.SignalsBySeverity["critical"])
}
