// Command clamser runs the full indirect-calorimetry pipeline: it
// parses raw CLAMS export files, merges them into one measurement
// table, applies the configured time window, normalization view and
// group assignments, and writes the summary CSVs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"clamser/internal/clams"
	"clamser/internal/config"
	"clamser/internal/dataprocessing"
	apperrors "clamser/internal/errors"
	"clamser/internal/exporter"
	"clamser/internal/infrastructure"
	"clamser/internal/validation"
	"clamser/pkg/contracts"
	"clamser/pkg/contracts/domain"
)

func main() {
	inDir := flag.String("in", "", "input directory of raw export files (alternative: positional file paths)")
	outDir := flag.String("out", "output", "output directory for result CSVs")
	configPath := flag.String("config", "", "path to YAML configuration file")
	view := flag.String("view", "", "normalization view override: absolute, bodyweight or leanmass")
	windowHours := flag.Int("window", 0, "trailing window override in hours: 24, 48 or 72")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *view != "" {
		cfg.Analysis.View = *view
	}
	if *windowHours > 0 {
		cfg.Analysis.Window = config.WindowConfig{PresetHours: *windowHours}
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = infrastructure.GetLogger()
	}
	defer infrastructure.CloseLogFile()

	ctx := infrastructure.WithRunID(context.Background(), uuid.NewString())

	if err := run(ctx, logger, cfg, *inDir, *outDir, flag.Args()); err != nil {
		logger.ErrorContext(ctx, "Run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run executes one analysis session. Any error aborts the whole run;
// no partial output is left behind beyond files already written.
func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, inDir, outDir string, fileArgs []string) error {
	logger.InfoContext(ctx, "Starting analysis run",
		slog.String("version", contracts.Version),
		slog.String("view", cfg.Analysis.View),
		slog.String("output_dir", outDir))

	session, err := cfg.Analysis.Session()
	if err != nil {
		return fmt.Errorf("analysis configuration: %w", err)
	}

	fv := validation.NewFileValidator(logger)
	files, err := resolveInputs(fv, inDir, fileArgs)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrTypeValidation, "resolving input files", err)
	}
	if err := fv.ValidateOutputDirectory(outDir); err != nil {
		return apperrors.NewAppError(apperrors.ErrTypeValidation, "preparing output directory", err)
	}

	sequences, totalBytes, err := parseAll(ctx, logger, cfg.Limits, files)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "Export files parsed",
		slog.Int("file_count", len(files)),
		slog.String("total_size", humanize.IBytes(uint64(totalBytes))))

	table, err := dataprocessing.BuildTable(sequences...)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrTypeMerge, "merging export files", err)
	}
	table, err = dataprocessing.ApplyWindow(table, session.Window)
	if err != nil {
		return err
	}
	table, err = dataprocessing.Normalize(table, session.View, session.Covariates)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrTypeCovariate, "normalizing measurements", err)
	}
	table, err = dataprocessing.AssignGroups(table, session.Groups, dataprocessing.AssignOptions{
		AllowUnassigned: session.AllowUnassigned,
	})
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrTypeGrouping, "assigning experimental groups", err)
	}
	table, err = dataprocessing.AnnotateLightCycle(table, session.LightStart, session.LightEnd)
	if err != nil {
		return err
	}
	if session.ConvertAccumulative {
		table = dataprocessing.ToIntervalValues(table)
	}
	if session.OutlierSD > 0 {
		table = dataprocessing.FlagOutliers(table, session.OutlierSD)
	}

	logger.InfoContext(ctx, "Measurement table ready",
		slog.Int("measurements", table.Len()),
		slog.Int("subjects", len(table.Subjects())),
		slog.Int("channels", len(table.Channels())))

	summarizer := dataprocessing.NewSummarizer(logger, dataprocessing.SummarizerConfig{
		Granularity: session.Bucket,
	})
	summary, err := summarizer.Summarize(ctx, table)
	if err != nil {
		return err
	}
	animals, err := summarizer.SummarizePerAnimal(ctx, table)
	if err != nil {
		return err
	}
	groupPeriod, err := summarizer.SummarizePerGroupPeriod(ctx, table)
	if err != nil {
		return err
	}

	writer := exporter.NewCSVWriter(outDir, logger)
	exports := []struct {
		name    string
		headers []string
		records [][]string
	}{
		{"summary.csv", exporter.SummaryHeaders, exporter.FormatSummaryRows(summary)},
		{"animal_summary.csv", exporter.AnimalSummaryHeaders, exporter.FormatAnimalSummaries(animals)},
		{"group_period.csv", exporter.GroupPeriodHeaders, exporter.FormatGroupPeriodSummaries(groupPeriod)},
		{"measurements.csv", exporter.MeasurementHeaders, exporter.FormatMeasurements(table)},
	}
	for _, e := range exports {
		err := writer.WriteCSV(e.name, exporter.WriteOptions{
			Headers:   e.headers,
			Records:   e.records,
			BOMPrefix: true,
		})
		if err != nil {
			return fmt.Errorf("write %s: %w", e.name, err)
		}
	}

	logger.InfoContext(ctx, "Analysis run complete",
		slog.Int("summary_rows", len(summary)),
		slog.Int("animal_rows", len(animals)),
		slog.Int("group_period_rows", len(groupPeriod)))
	return nil
}

// resolveInputs turns the -in directory or the positional file list
// into the set of export files to parse.
func resolveInputs(fv *validation.FileValidator, inDir string, fileArgs []string) ([]string, error) {
	if inDir != "" && len(fileArgs) > 0 {
		return nil, fmt.Errorf("pass either -in or positional files, not both")
	}
	if inDir != "" {
		return fv.CollectExportFiles(inDir)
	}
	if len(fileArgs) == 0 {
		return nil, fmt.Errorf("no input: pass -in <dir> or one or more export files")
	}
	for _, f := range fileArgs {
		if err := fv.ValidateExportFile(f); err != nil {
			return nil, err
		}
	}
	return fileArgs, nil
}

// parseAll parses the export files concurrently. The downstream merge
// is order independent, so completion order does not matter; results
// are still kept in input order for deterministic logs.
func parseAll(ctx context.Context, logger *slog.Logger, limits config.LimitsConfig, files []string) ([][]domain.Measurement, int64, error) {
	parser := clams.NewParser(logger, clams.Limits{
		MaxBytes: limits.MaxFileBytes,
		MaxRows:  limits.MaxRows,
	})

	sequences := make([][]domain.Measurement, len(files))
	sizes := make([]int64, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()

			if info, err := f.Stat(); err == nil {
				sizes[i] = info.Size()
			}

			parsed, err := parser.Parse(f, path)
			if err != nil {
				return apperrors.NewAppError(apperrors.ErrTypeParsing, "parsing export file", err).
					WithContext("file", path)
			}
			logger.InfoContext(ctx, "Parsed export file",
				slog.String("file", path),
				slog.String("channel", string(parsed.Channel)),
				slog.Int("measurements", len(parsed.Measurements)))
			sequences[i] = parsed.Measurements
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var total int64
	for _, s := range sizes {
		total += s
	}
	return sequences, total, nil
}
