package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	domain "tpower/domain/power"
	"tpower/internal"
	"tpower/internal/config"
	"tpower/internal/errors"
	"tpower/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "tpower",
		Short: "Sample size and power analysis for one- and two-sample t-tests",
		Long: `tpower finds the smallest sample size at which a t-test reaches a target power,
using the exact noncentral t-distribution.

Defaults come from the environment (TPOWER_ALPHA, TPOWER_POWER, TPOWER_EFFECT_SIZE,
TPOWER_TAIL, TPOWER_RATIO, TPOWER_MAX_N, ...) or a .env file.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			internal.DefaultLogger.SetLevel(internal.ParseLogLevel(logLevel))
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level (ERROR, WARN, INFO, DEBUG, TRACE)")

	rootCmd.AddCommand(
		newOneSampleCmd(cfg),
		newTwoSampleCmd(cfg),
		newPowerCmd(cfg),
		newCurveCmd(cfg),
		newSimulateCmd(cfg),
		newBatchCmd(cfg),
		newServeCmd(cfg),
		newDefaultsCmd(cfg),
		newEffectSizeCmd(),
	)
	return rootCmd
}

// outputOptions are the flags shared by the search commands
type outputOptions struct {
	plot       bool
	plotDir    string
	plotFormat string
	reportPath string
	asJSON     bool
}

func (o *outputOptions) register(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().BoolVar(&o.plot, "plot", false, "Save a plot of the null and alternative distributions")
	cmd.Flags().StringVar(&o.plotDir, "plot-dir", cfg.Output.PlotDir, "Directory for plot files")
	cmd.Flags().StringVar(&o.plotFormat, "plot-format", cfg.Output.PlotFormat, "Plot format (png, svg, pdf)")
	cmd.Flags().StringVar(&o.reportPath, "report", "", "Write a report to this path (.md or .html)")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "Print the result as JSON instead of the summary line")
}

func parseTailFlag(raw string) (domain.TailMode, error) {
	tail, err := domain.ParseTailMode(raw)
	if err != nil {
		return "", errors.InvalidEnum(err.Error())
	}
	return tail, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeReport renders rep as Markdown or HTML depending on the file extension
func writeReport(rep *report.Report, path string) error {
	var body []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		body = rep.HTML()
	default:
		body = rep.Markdown()
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return errors.Wrapf(err, "writing report %s", path)
	}
	return nil
}
