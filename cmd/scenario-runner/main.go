package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/internal/geo"
	"github.com/saaga0h/guardian-platform/internal/scenario"
	"github.com/saaga0h/guardian-platform/pkg/config"
	"github.com/saaga0h/guardian-platform/pkg/logging"
	"github.com/spf13/pflag"
)

func main() {
	cfg := config.NewConfig()
	cfg.ServiceName = "scenario-runner"
	cfg.LogLevel = "warn"
	cfg.LoadFromEnv()

	fs := pflag.NewFlagSet("scenario-runner", pflag.ExitOnError)
	cfg.RegisterFlags(fs)
	scenarioPath := fs.String("scenario", "", "Path to YAML scenario file (required)")
	outputDir := fs.String("output-dir", "", "Directory for the JSON summary (optional)")
	_ = fs.Parse(os.Args[1:])

	if *scenarioPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --scenario is required\n")
		fs.Usage()
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFile)

	defaults := detection.DefaultSettings()
	if cfg.SettingsDefaultsFile != "" {
		loaded, err := detection.LoadDefaultsFile(cfg.SettingsDefaultsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load default settings: %v\n", err)
			os.Exit(1)
		}
		defaults = loaded
	}

	scen, err := scenario.LoadScenario(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load scenario: %v\n", err)
		os.Exit(1)
	}

	runner := scenario.NewRunner(defaults, geo.Point{Latitude: cfg.HomeLatitude, Longitude: cfg.HomeLongitude}, logger)
	result, err := runner.Run(context.Background(), scen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scenario execution failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(scenario.GenerateTimeline(result))

	if *outputDir != "" {
		name := strings.TrimSuffix(filepath.Base(*scenarioPath), filepath.Ext(*scenarioPath))
		summaryFile := filepath.Join(*outputDir, name+"-summary.json")
		if err := scenario.SaveSummary(result, summaryFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save summary: %v\n", err)
		} else {
			fmt.Printf("Summary saved to %s\n", summaryFile)
		}
	}

	if !result.Passed {
		os.Exit(1)
	}
}
