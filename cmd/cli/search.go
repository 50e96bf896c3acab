package main

import (
	"fmt"

	"github.com/spf13/cobra"

	domain "tpower/domain/power"
	"tpower/internal/config"
	"tpower/internal/errors"
	"tpower/internal/power"
	"tpower/internal/report"
	"tpower/internal/visualize"
)

func newOneSampleCmd(cfg *config.Config) *cobra.Command {
	var alpha, target, d float64
	var tailFlag string
	var maxN int
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "one-sample",
		Short: "Find the smallest n for a one-sample t-test",
		Long: `Search n = 1, 2, ... until the one-sample t-test reaches the target power.

Example: tpower one-sample --alpha 0.05 --power 0.8 --d 0.5 --tail two-tailed --plot`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tail, err := parseTailFlag(tailFlag)
			if err != nil {
				return err
			}
			test := domain.TestConfiguration{Alpha: alpha, PowerTarget: target, EffectSize: d, Tail: tail, MaxSampleSize: maxN}
			return runOneSample(cmd, test, out)
		},
	}

	cmd.Flags().Float64Var(&alpha, "alpha", cfg.OneSample.Alpha, "Significance level")
	cmd.Flags().Float64Var(&target, "power", cfg.OneSample.Power, "Target power")
	cmd.Flags().Float64Var(&d, "d", cfg.OneSample.EffectSize, "Effect size (Cohen's d)")
	cmd.Flags().StringVar(&tailFlag, "tail", cfg.OneSample.Tail, "Tail mode (two-tailed, upper-one-tailed, lower-one-tailed)")
	cmd.Flags().IntVar(&maxN, "max-n", cfg.Search.MaxSampleSize, "Give up beyond this sample size")
	out.register(cmd, cfg)

	return cmd
}

func runOneSample(cmd *cobra.Command, test domain.TestConfiguration, out outputOptions) error {
	res, err := power.SearchOneSample(test)
	if err != nil {
		return err
	}

	if out.asJSON {
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), report.OneSampleSummary(res))
	}

	rep := report.NewReport()
	rep.OneSample, rep.OneSampleResult = &test, &res
	if out.plot {
		path := visualize.FileName(out.plotDir, "one_sample_"+string(res.Tail), out.plotFormat)
		if err := visualize.Save(visualize.OneSampleSpec(res), path); err != nil {
			return err
		}
		rep.PlotPath = path
		fmt.Fprintf(cmd.ErrOrStderr(), "plot written to %s\n", path)
	}
	if out.reportPath != "" {
		return writeReport(rep, out.reportPath)
	}
	return nil
}

func newTwoSampleCmd(cfg *config.Config) *cobra.Command {
	var alpha, target, d, ratio float64
	var tailFlag string
	var maxN int
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "two-sample",
		Short: "Find the smallest group sizes for an independent two-sample t-test",
		Long: `Search n1 = 2, 3, ... with n2 = round(n1 * ratio) until the pooled-variance
two-sample t-test reaches the target power.

Example: tpower two-sample --d 0.8 --ratio 1 --plot`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tail, err := parseTailFlag(tailFlag)
			if err != nil {
				return err
			}
			test := domain.TwoSampleConfiguration{Alpha: alpha, PowerTarget: target, EffectSize: d, Ratio: ratio, Tail: tail, MaxSampleSize: maxN}
			return runTwoSample(cmd, test, out)
		},
	}

	cmd.Flags().Float64Var(&alpha, "alpha", cfg.TwoSample.Alpha, "Significance level")
	cmd.Flags().Float64Var(&target, "power", cfg.TwoSample.Power, "Target power")
	cmd.Flags().Float64Var(&d, "d", cfg.TwoSample.EffectSize, "Effect size (Cohen's d)")
	cmd.Flags().Float64Var(&ratio, "ratio", cfg.TwoSample.Ratio, "Group size ratio; n2 = round(n1 * ratio)")
	cmd.Flags().StringVar(&tailFlag, "tail", string(domain.TwoTailed), "Tail mode (two-tailed, upper-one-tailed, lower-one-tailed)")
	cmd.Flags().IntVar(&maxN, "max-n", cfg.Search.MaxSampleSize, "Give up beyond this n1")
	out.register(cmd, cfg)

	return cmd
}

func runTwoSample(cmd *cobra.Command, test domain.TwoSampleConfiguration, out outputOptions) error {
	res, err := power.SearchTwoSample(test)
	if err != nil {
		return err
	}

	if out.asJSON {
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), report.TwoSampleSummary(res))
	}

	rep := report.NewReport()
	rep.TwoSample, rep.TwoSampleResult = &test, &res
	if out.plot {
		path := visualize.FileName(out.plotDir, "two_sample_"+string(res.Tail), out.plotFormat)
		if err := visualize.Save(visualize.TwoSampleSpec(res, test.EffectSize), path); err != nil {
			return err
		}
		rep.PlotPath = path
		fmt.Fprintf(cmd.ErrOrStderr(), "plot written to %s\n", path)
	}
	if out.reportPath != "" {
		return writeReport(rep, out.reportPath)
	}
	return nil
}

// newPowerCmd evaluates power at a fixed sample size instead of searching
func newPowerCmd(cfg *config.Config) *cobra.Command {
	var alpha, d float64
	var tailFlag string
	var n, n1, n2 int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "power",
		Short: "Compute the power of a t-test at a given sample size",
		Long: `Compute df, noncentrality, critical value and power at a fixed sample size.
Pass --n for a one-sample test, or --n1 and --n2 for a two-sample test.

Example: tpower power --n 34 --d 0.5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tail, err := parseTailFlag(tailFlag)
			if err != nil {
				return err
			}

			var eval domain.Evaluation
			switch {
			case n > 0 && n1 == 0 && n2 == 0:
				eval, err = power.PowerOneSample(alpha, d, n, tail)
			case n == 0 && n1 > 0 && n2 > 0:
				eval, err = power.PowerTwoSample(alpha, d, n1, n2, tail)
			default:
				return errors.ValidationError("pass either --n, or both --n1 and --n2")
			}
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), evaluationJSON{
					DegreesOfFreedom: eval.DegreesOfFreedom,
					Noncentrality:    eval.Noncentrality,
					CriticalValue:    domain.FiniteOrNil(eval.CriticalValue),
					Power:            eval.Power,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "df=%d, δ:%.4f, Critical t:%.4f, Power=%.4f\n",
				eval.DegreesOfFreedom, eval.Noncentrality, eval.CriticalValue, eval.Power)
			return nil
		},
	}

	cmd.Flags().Float64Var(&alpha, "alpha", cfg.OneSample.Alpha, "Significance level")
	cmd.Flags().Float64Var(&d, "d", cfg.OneSample.EffectSize, "Effect size (Cohen's d)")
	cmd.Flags().StringVar(&tailFlag, "tail", cfg.OneSample.Tail, "Tail mode")
	cmd.Flags().IntVar(&n, "n", 0, "One-sample size")
	cmd.Flags().IntVar(&n1, "n1", 0, "First group size")
	cmd.Flags().IntVar(&n2, "n2", 0, "Second group size")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the evaluation as JSON")

	return cmd
}

// evaluationJSON is domain.Evaluation with the df = 0 critical value as null
type evaluationJSON struct {
	DegreesOfFreedom int      `json:"df"`
	Noncentrality    float64  `json:"delta"`
	CriticalValue    *float64 `json:"t_critical"`
	Power            float64  `json:"power"`
}
