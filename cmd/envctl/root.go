package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/heliowatch/heliowatch/internal/api/models"
	"github.com/heliowatch/heliowatch/internal/app"
	"github.com/heliowatch/heliowatch/internal/config"
	"github.com/heliowatch/heliowatch/internal/environment"
)

const (
	outputText = "text"
	outputJSON = "json"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "envctl",
		Short:         "Query the HelioWatch environment pipeline",
		Long:          "Assembles unified environment reports and shows the active impact rules without running the API server.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline activity to stderr")

	logger := func() zerolog.Logger {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).
			With().
			Timestamp().
			Logger()
	}

	root.AddCommand(newReportCmd(logger), newRulesCmd(), newSitesCmd())
	return root
}

func newReportCmd(logger func() zerolog.Logger) *cobra.Command {
	var (
		lat, lon float64
		output   string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Assemble a unified report for a coordinate",
		Example: `  envctl report --lat 35.0117 --lon -117.5591
  envctl report --lat 36.93 --lon -2.35 --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != outputText && output != outputJSON {
				return fmt.Errorf("unknown output format %q (want %s or %s)", output, outputText, outputJSON)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			pipeline, err := app.Build(ctx, cfg, logger())
			if err != nil {
				return err
			}
			defer func() { _ = pipeline.Close() }()

			rep, err := pipeline.Reports.GetUnifiedReport(ctx, environment.Coordinates{Lat: lat, Lon: lon})
			if err != nil {
				return err
			}

			out := models.FromReport(rep)
			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			return writeReportText(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude in decimal degrees")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format (text, json)")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "overall timeout")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")

	return cmd
}

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the active impact rule set as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), models.NewRulesResponse(cfg.Rules.RuleSet()))
		},
	}
}

func newSitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List the sites the worker monitors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sites, err := config.ParseSites(cfg.Worker.Sites)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLAT\tLON")
			for _, s := range sites {
				fmt.Fprintf(tw, "%s\t%.4f\t%.4f\n", s.Name, s.Coordinates.Lat, s.Coordinates.Lon)
			}
			return tw.Flush()
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReportText(w io.Writer, r models.EnvironmentReport) error {
	source := r.Provenance.Source
	if r.Provenance.Provider != "" {
		source += " (" + r.Provenance.Provider + ")"
	}
	if r.Provenance.CacheHit {
		source += " [cached]"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Location\t%.4f, %.4f\n", r.Coordinates.Lat, r.Coordinates.Lon)
	fmt.Fprintf(tw, "Source\t%s\n", source)
	fmt.Fprintf(tw, "Captured\t%s (age %ds)\n", time.Unix(r.Reading.CapturedAt, 0).UTC().Format(time.RFC3339), r.Freshness.AgeSeconds)
	if r.Freshness.Stale {
		fmt.Fprintf(tw, "Warning\t%s\n", r.Freshness.Warning)
	}
	fmt.Fprintf(tw, "Conditions\t%s, %.1f C, wind %.1f m/s, humidity %.0f%%\n",
		r.Reading.Condition, r.Reading.TemperatureC, r.Reading.WindSpeedMS, r.Reading.HumidityPct)
	fmt.Fprintf(tw, "Aggregate\t%s (%s)\n", r.Aggregate.Status, r.Aggregate.Level)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBSYSTEM\tSTATUS\tSCORE\tREASON")
	for _, i := range r.Impacts {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", i.Subsystem, i.Status, i.Score, i.Reason)
	}
	if len(r.Forecast) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "HOUR\tTEMP C\tRISK\t")
		for _, f := range r.Forecast {
			fmt.Fprintf(tw, "+%d\t%.1f\t%s\t\n", f.HourOffset, f.TemperatureC, f.Risk)
		}
	}
	return tw.Flush()
}
