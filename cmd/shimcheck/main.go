package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"shimcheck/internal/config"
	"shimcheck/internal/pipeline"
	"shimcheck/internal/report"
	"shimcheck/internal/source"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "shimcheck",
		Short:         "Find shim RBI definitions that duplicate generated RBIs or Sorbet's payload",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCheck,
	}
	flags struct {
		config            string
		gemRBIDir         string
		dslRBIDir         string
		shimRBIDir        string
		annotationsRBIDir string
		todoRBIFile       string
		payload           bool
		noPayload         bool
		order             []string
		scope             string
		db                string
		reportJSON        string
		verbose           bool
	}
)

// errCheckFailed is returned once a failing report has been written.
var errCheckFailed = errors.New("check failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "shimcheck.yml", "Path to the configuration file")
	pf.StringVar(&flags.gemRBIDir, "gem-rbi-dir", config.DefaultGemRBIDir, "Path to gem RBIs")
	pf.StringVar(&flags.dslRBIDir, "dsl-rbi-dir", config.DefaultDSLRBIDir, "Path to DSL RBIs")
	pf.StringVar(&flags.shimRBIDir, "shim-rbi-dir", config.DefaultShimRBIDir, "Path to shim RBIs")
	pf.StringVar(&flags.annotationsRBIDir, "annotations-rbi-dir", config.DefaultAnnotationsRBIDir, "Path to annotations RBIs")
	pf.StringVar(&flags.todoRBIFile, "todo-rbi-file", config.DefaultTodoRBIFile, "Path to the generated todo RBI file")
	pf.BoolVar(&flags.payload, "payload", true, "Check shims against Sorbet's payload")
	pf.BoolVar(&flags.noPayload, "no-payload", false, "Do not check shims against Sorbet's payload")
	pf.StringSliceVar(&flags.order, "order", nil, "Group load order, e.g. payload,todo,shim,gem,dsl,annotations")
	pf.StringVar(&flags.scope, "scope", config.ScopeEditable, "Clusters to report: editable or all")
	pf.StringVarP(&flags.db, "db", "d", "", "Archive the run in this SQLite database")
	pf.StringVar(&flags.reportJSON, "report-json", "", "Write a JSON run report to this path")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(groupsCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check shim RBIs for duplicated definitions",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List the RBI groups in load order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		reg := source.NewRegistry(cfg.Groups())
		for i, g := range reg.Groups() {
			state := "enabled"
			if !g.Enabled {
				state = "disabled"
			}
			if g.Remote() {
				fmt.Printf("%d. %-12s %-9s %s\n", i+1, g.Name, state, g.Label)
				continue
			}
			docs, err := reg.Documents(g)
			if err != nil {
				return err
			}
			fmt.Printf("%d. %-12s %-9s %s (%d files)\n", i+1, g.Name, state, g.Path, len(docs))
		}
		return nil
	},
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded", "order", cfg.Order, "scope", cfg.Scope, "payload", cfg.Payload.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	checker := pipeline.NewChecker(cfg,
		pipeline.WithOutput(os.Stdout),
		pipeline.WithLogger(logger),
		pipeline.WithStyles(styles()),
	)
	rep, err := checker.Run(ctx)
	if err != nil {
		return err
	}
	if err := rep.Write(os.Stdout, os.Stderr); err != nil {
		return err
	}
	if rep.Verdict.ExitCode() != 0 {
		return errCheckFailed
	}
	return nil
}

// loadConfig layers the flags the user set over the configuration file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(flags.config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	changed := cmd.Flags().Changed
	strs := map[string]struct {
		dst *string
		val string
	}{
		"gem-rbi-dir":         {&cfg.GemRBIDir, flags.gemRBIDir},
		"dsl-rbi-dir":         {&cfg.DSLRBIDir, flags.dslRBIDir},
		"shim-rbi-dir":        {&cfg.ShimRBIDir, flags.shimRBIDir},
		"annotations-rbi-dir": {&cfg.AnnotationsRBIDir, flags.annotationsRBIDir},
		"todo-rbi-file":       {&cfg.TodoRBIFile, flags.todoRBIFile},
		"scope":               {&cfg.Scope, flags.scope},
		"db":                  {&cfg.Output.DB, flags.db},
		"report-json":         {&cfg.Output.ReportJSON, flags.reportJSON},
	}
	for name, f := range strs {
		if changed(name) {
			*f.dst = f.val
		}
	}
	if changed("payload") {
		cfg.Payload.Enabled = flags.payload
	}
	if changed("no-payload") && flags.noPayload {
		cfg.Payload.Enabled = false
	}
	if changed("order") {
		cfg.Order = flags.order
	}
	return cfg, cfg.Validate()
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "shimcheck"})
	if flags.verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func styles() report.Styles {
	render := func(s lipgloss.Style) func(string) string {
		return func(text string) string { return s.Render(text) }
	}
	return report.Styles{
		Warning: render(lipgloss.NewStyle().Foreground(lipgloss.Color("3"))),
		Header:  render(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))),
		Remedy:  render(lipgloss.NewStyle().Foreground(lipgloss.Color("1"))),
		Success: render(lipgloss.NewStyle().Foreground(lipgloss.Color("2"))),
	}
}
