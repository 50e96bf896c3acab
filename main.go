package main

import (
	"fmt"
	"log"
	"os"

	"tpower/internal"
	"tpower/internal/config"
	"tpower/internal/errors"
	"tpower/internal/power"
	"tpower/internal/report"
	"tpower/internal/visualize"
)

// main runs the two default scenarios: a one-sample search in the configured
// tail mode and a two-tailed two-sample search, printing a summary line and
// saving a distribution plot for each.
func main() {
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	internal.DefaultLogger.SetLevel(internal.ParseLogLevel(appConfig.LogLevel))

	if err := run(appConfig); err != nil {
		fmt.Fprintf(os.Stderr, "[%s] %v\n", errors.GetCode(err), err)
		os.Exit(1)
	}
}

func run(appConfig *config.Config) error {
	logger := internal.DefaultLogger.With("main")
	if err := os.MkdirAll(appConfig.Output.PlotDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating plot directory %s", appConfig.Output.PlotDir)
	}

	oneSample, err := appConfig.OneSampleTest()
	if err != nil {
		return err
	}
	oneResult, err := power.SearchOneSample(oneSample)
	if err != nil {
		return errors.Wrap(err, "one-sample search")
	}
	fmt.Println(report.OneSampleSummary(oneResult))

	onePath := visualize.FileName(appConfig.Output.PlotDir, "one_sample_"+string(oneResult.Tail), appConfig.Output.PlotFormat)
	if err := visualize.Save(visualize.OneSampleSpec(oneResult), onePath); err != nil {
		return err
	}
	logger.Info("one-sample plot written to %s", onePath)

	twoSample := appConfig.TwoSampleTest()
	twoResult, err := power.SearchTwoSample(twoSample)
	if err != nil {
		return errors.Wrap(err, "two-sample search")
	}
	fmt.Println(report.TwoSampleSummary(twoResult))

	twoPath := visualize.FileName(appConfig.Output.PlotDir, "two_sample_"+string(twoResult.Tail), appConfig.Output.PlotFormat)
	if err := visualize.Save(visualize.TwoSampleSpec(twoResult, twoSample.EffectSize), twoPath); err != nil {
		return err
	}
	logger.Info("two-sample plot written to %s", twoPath)
	return nil
}
