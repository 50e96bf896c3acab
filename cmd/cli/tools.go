package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tpower/adapters/excel"
	domain "tpower/domain/power"
	"tpower/internal/batch"
	"tpower/internal/config"
	"tpower/internal/effectsize"
	"tpower/internal/errors"
	"tpower/internal/power"
	"tpower/internal/report"
	"tpower/internal/simulation"
	"tpower/ui"
)

func newCurveCmd(cfg *config.Config) *cobra.Command {
	var kind, tailFlag, xlsxPath, reportPath string
	var alpha, d, ratio float64
	var from, to int

	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Tabulate power over a range of sample sizes",
		Long: `Print power for every n (or n1) in [--from, --to], optionally exporting the
table to an Excel workbook.

Example: tpower curve --kind two-sample --d 0.8 --from 10 --to 40 --xlsx curve.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tail, err := parseTailFlag(tailFlag)
			if err != nil {
				return err
			}

			var points []domain.CurvePoint
			switch kind {
			case string(batch.KindOneSample):
				points, err = power.CurveOneSample(alpha, d, tail, from, to)
			case string(batch.KindTwoSample):
				points, err = power.CurveTwoSample(alpha, d, ratio, tail, from, to)
			default:
				return errors.InvalidEnum(fmt.Sprintf("unknown curve kind %q (want one-sample or two-sample)", kind))
			}
			if err != nil {
				return err
			}

			printCurve(cmd, points, kind == string(batch.KindTwoSample))

			if reportPath != "" {
				rep := report.NewReport()
				rep.Curve = points
				if err := writeReport(rep, reportPath); err != nil {
					return err
				}
			}
			if xlsxPath == "" {
				return nil
			}
			params := map[string]string{
				"kind":        kind,
				"alpha":       strconv.FormatFloat(alpha, 'g', -1, 64),
				"effect_size": strconv.FormatFloat(d, 'g', -1, 64),
				"tail":        string(tail),
			}
			if kind == string(batch.KindTwoSample) {
				params["ratio"] = strconv.FormatFloat(ratio, 'g', -1, 64)
			}
			if err := excel.NewCurveWriter().WriteFile(xlsxPath, params, points); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "curve written to %s\n", xlsxPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(batch.KindOneSample), "one-sample or two-sample")
	cmd.Flags().Float64Var(&alpha, "alpha", cfg.OneSample.Alpha, "Significance level")
	cmd.Flags().Float64Var(&d, "d", cfg.OneSample.EffectSize, "Effect size (Cohen's d)")
	cmd.Flags().Float64Var(&ratio, "ratio", cfg.TwoSample.Ratio, "Group size ratio for two-sample curves")
	cmd.Flags().StringVar(&tailFlag, "tail", cfg.OneSample.Tail, "Tail mode")
	cmd.Flags().IntVar(&from, "from", 2, "First sample size")
	cmd.Flags().IntVar(&to, "to", 60, "Last sample size")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the curve to this .xlsx file")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the curve as a report to this path (.md or .html)")

	return cmd
}

func printCurve(cmd *cobra.Command, points []domain.CurvePoint, twoSample bool) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if twoSample {
		fmt.Fprintln(tw, "n1\tn2\tdf\tdelta\tt_critical\tpower")
	} else {
		fmt.Fprintln(tw, "n\tdf\tdelta\tt_critical\tpower")
	}
	for _, p := range points {
		if twoSample {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%.4f\t%.4f\t%.4f\n", p.N, p.N2, p.DegreesOfFreedom, p.Noncentrality, p.CriticalValue, p.Power)
		} else {
			fmt.Fprintf(tw, "%d\t%d\t%.4f\t%.4f\t%.4f\n", p.N, p.DegreesOfFreedom, p.Noncentrality, p.CriticalValue, p.Power)
		}
	}
	tw.Flush()
}

func newSimulateCmd(cfg *config.Config) *cobra.Command {
	var kind, tailFlag, reportPath string
	var alpha, target, d, ratio float64
	var simCfg simulation.SimulationConfig

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Check the analytic power at the found sample size by Monte Carlo",
		Long: `Run the sample-size search, then draw normal samples under the alternative and
count how often the t-test rejects with the same critical value.

Example: tpower simulate --d 0.5 --trials 10000 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tail, err := parseTailFlag(tailFlag)
			if err != nil {
				return err
			}
			sim := simulation.NewSimulator(simCfg)
			rep := report.NewReport()

			var res simulation.Result
			switch kind {
			case string(batch.KindOneSample):
				test := domain.TestConfiguration{Alpha: alpha, PowerTarget: target, EffectSize: d, Tail: tail, MaxSampleSize: cfg.Search.MaxSampleSize}
				found, err := power.SearchOneSample(test)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), report.OneSampleSummary(found))
				rep.OneSample, rep.OneSampleResult = &test, &found
				if res, err = sim.OneSample(cmd.Context(), alpha, d, found.N, tail); err != nil {
					return err
				}
			case string(batch.KindTwoSample):
				test := domain.TwoSampleConfiguration{Alpha: alpha, PowerTarget: target, EffectSize: d, Ratio: ratio, Tail: tail, MaxSampleSize: cfg.Search.MaxSampleSize}
				found, err := power.SearchTwoSample(test)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), report.TwoSampleSummary(found))
				rep.TwoSample, rep.TwoSampleResult = &test, &found
				if res, err = sim.TwoSample(cmd.Context(), alpha, d, found.N1, found.N2, tail); err != nil {
					return err
				}
			default:
				return errors.InvalidEnum(fmt.Sprintf("unknown simulation kind %q (want one-sample or two-sample)", kind))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "trials=%d, Empirical Power=%.4f ± %.4f, Analytic Power=%.4f\n",
				res.Trials, res.EmpiricalPower, 1.96*res.StdErr, res.AnalyticPower)
			if reportPath != "" {
				rep.Simulation = &res
				return writeReport(rep, reportPath)
			}
			return nil
		},
	}

	def := simulation.DefaultSimulationConfig()
	cmd.Flags().StringVar(&kind, "kind", string(batch.KindOneSample), "one-sample or two-sample")
	cmd.Flags().Float64Var(&alpha, "alpha", cfg.OneSample.Alpha, "Significance level")
	cmd.Flags().Float64Var(&target, "power", cfg.OneSample.Power, "Target power")
	cmd.Flags().Float64Var(&d, "d", cfg.OneSample.EffectSize, "Effect size (Cohen's d)")
	cmd.Flags().Float64Var(&ratio, "ratio", cfg.TwoSample.Ratio, "Group size ratio for two-sample tests")
	cmd.Flags().StringVar(&tailFlag, "tail", cfg.OneSample.Tail, "Tail mode")
	cmd.Flags().IntVar(&simCfg.Trials, "trials", def.Trials, "Number of simulated experiments")
	cmd.Flags().IntVar(&simCfg.Workers, "workers", cfg.Search.Workers, "Parallel simulation workers")
	cmd.Flags().Uint64Var(&simCfg.Seed, "seed", def.Seed, "Random seed for deterministic runs")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a report to this path (.md or .html)")

	return cmd
}

func newBatchCmd(cfg *config.Config) *cobra.Command {
	var workers int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "batch [scenarios.yaml]",
		Short: "Solve every scenario in a YAML file concurrently",
		Long: `Solve a list of one- and two-sample scenarios. Results print in file order;
a failing scenario is reported without stopping the rest.

Example file:

  scenarios:
    - name: pilot
      kind: one-sample
      alpha: 0.05
      power: 0.8
      effect_size: 0.5
    - name: trial
      kind: two-sample
      alpha: 0.05
      power: 0.9
      effect_size: 0.8
      ratio: 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := batch.Load(args[0])
			if err != nil {
				return err
			}
			outcomes, err := batch.NewRunner(power.NewCalculator(), workers).Run(cmd.Context(), scenarios)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), outcomes)
			}

			failed := 0
			for _, o := range outcomes {
				switch {
				case o.Err != nil:
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: error [%s] %v\n", o.Scenario.Name, errors.GetCode(o.Err), o.Err)
				case o.TwoSample != nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", o.Scenario.Name, report.TwoSampleSummary(*o.TwoSample))
				case o.OneSample != nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", o.Scenario.Name, report.OneSampleSummary(*o.OneSample))
				}
			}
			if failed > 0 {
				return errors.Newf(errors.CodeValidationError, "%d of %d scenarios failed", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", cfg.Search.Workers, "Concurrent searches")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print outcomes as JSON")

	return cmd
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API, plots and Prometheus metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return ui.NewServer(cfg).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "Listen port")
	return cmd
}

func newDefaultsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(defaultsView(cfg)); err != nil {
				return errors.Wrap(err, "encoding configuration")
			}
			return enc.Close()
		},
	}
}

type defaultsDocument struct {
	OneSample domain.TestConfiguration      `yaml:"one_sample"`
	TwoSample domain.TwoSampleConfiguration `yaml:"two_sample"`
	Workers   int                           `yaml:"workers"`
	PlotDir   string                        `yaml:"plot_dir"`
	Format    string                        `yaml:"plot_format"`
	Port      string                        `yaml:"port"`
	LogLevel  string                        `yaml:"log_level"`
}

func defaultsView(cfg *config.Config) defaultsDocument {
	// Config.Load already validated the tail, so the error is nil here.
	one, _ := cfg.OneSampleTest()
	return defaultsDocument{
		OneSample: one,
		TwoSample: cfg.TwoSampleTest(),
		Workers:   cfg.Search.Workers,
		PlotDir:   cfg.Output.PlotDir,
		Format:    cfg.Output.PlotFormat,
		Port:      cfg.Server.Port,
		LogLevel:  cfg.LogLevel,
	}
}

func newEffectSizeCmd() *cobra.Command {
	var x, y []float64
	var mu0 float64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "effect-size",
		Short: "Estimate Cohen's d from pilot observations",
		Long: `Estimate Cohen's d from pilot data: against --mu0 when only --x is given,
or between two groups with a pooled standard deviation when --y is also given.

Example: tpower effect-size --x 5.1,4.8,5.6,5.0 --y 4.2,4.6,4.1,4.4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var est effectsize.Estimate
			var err error
			if len(y) == 0 {
				est, err = effectsize.OneSample(x, mu0)
			} else {
				est, err = effectsize.TwoSample(x, y)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), est)
			}
			if len(y) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "d=%.4f, n=%d, mean=%.4f, sd=%.4f, t=%.4f\n",
					est.D, est.N1, est.Mean1, est.SD, est.TStatistic)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "d=%.4f, n1=%d, n2=%d, pooled sd=%.4f, Welch t=%.4f (df=%.2f)\n",
					est.D, est.N1, est.N2, est.SD, est.TStatistic, est.WelchDF)
			}
			return nil
		},
	}

	cmd.Flags().Float64SliceVar(&x, "x", nil, "Observations (first group)")
	cmd.Flags().Float64SliceVar(&y, "y", nil, "Observations of the second group")
	cmd.Flags().Float64Var(&mu0, "mu0", 0, "Reference mean for a one-sample estimate")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the estimate as JSON")
	_ = cmd.MarkFlagRequired("x")

	return cmd
}
