package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"

	"github.com/TobiSchelling/vhireport/internal/aggregate"
	"github.com/TobiSchelling/vhireport/internal/render"
	"github.com/TobiSchelling/vhireport/internal/vhi"
	"github.com/spf13/cobra"
)

var (
	outputFormat string
	outputPath   string
)

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "",
		fmt.Sprintf("Output format: %s (default from config)", strings.Join(render.Formats, ", ")))
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to file instead of stdout")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report on the stored files without fetching",
}

var reportStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Mean, min and max VHI per region and year",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		obs, err := loadDataset()
		if err != nil {
			return err
		}
		return writeReport(render.StatsTable(aggregate.StatsByRegionYear(obs)))
	},
}

var reportYearCmd = &cobra.Command{
	Use:   "year YEAR",
	Short: "Weekly VHI of every region for one year",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		obs, err := loadDataset()
		if err != nil {
			return err
		}
		year := args[0]
		rows := aggregate.ObservationsForYear(obs, year)
		return writeReport(render.ProjectionTable("year_"+year, "VHI in "+year, rows))
	},
}

var reportYearsCmd = &cobra.Command{
	Use:   "years YEAR...",
	Short: "Weekly VHI of every region for several years",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		obs, err := loadDataset()
		if err != nil {
			return err
		}
		rows := aggregate.ObservationsForYears(obs, args)
		return writeReport(render.ProjectionTable("years", "VHI in "+strings.Join(args, ", "), rows))
	},
}

var reportDroughtCmd = &cobra.Command{
	Use:   "drought",
	Short: "Years of extreme drought across many regions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeDB, err := newPipeline()
		if err != nil {
			return err
		}
		defer closeDB()

		obs, err := datasetOf(pipe)
		if err != nil {
			return err
		}
		return writeReport(render.DroughtTable(aggregate.DroughtReport(obs, pipe.DroughtRule())))
	},
}

var reportAllCmd = &cobra.Command{
	Use:   "all",
	Short: "All four reports for the configured years",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeDB, err := newPipeline()
		if err != nil {
			return err
		}
		defer closeDB()

		obs, err := datasetOf(pipe)
		if err != nil {
			return err
		}
		reports := pipe.Reports(obs, cfg.Reports.Year, cfg.Reports.Years)
		return writeReport(reports.Tables()...)
	},
}

func init() {
	for _, c := range []*cobra.Command{reportStatsCmd, reportYearCmd, reportYearsCmd, reportDroughtCmd, reportAllCmd} {
		addOutputFlags(c)
		reportCmd.AddCommand(c)
	}
}

type datasetLoader interface {
	Dataset() ([]vhi.Observation, vhi.LoadStats, error)
}

func loadDataset() ([]vhi.Observation, error) {
	pipe, closeDB, err := newPipeline()
	if err != nil {
		return nil, err
	}
	defer closeDB()
	return datasetOf(pipe)
}

// datasetOf loads the stored files. Rejected files are warned about and
// skipped; only a store that cannot be read at all is an error.
func datasetOf(p datasetLoader) ([]vhi.Observation, error) {
	obs, stats, err := p.Dataset()
	if err != nil {
		if obs == nil {
			return nil, fmt.Errorf("loading stored files: %w", err)
		}
		log.Printf("Warning: %v", err)
	}
	if stats.Files == 0 {
		log.Printf("No stored files in %s. Run 'vhireport fetch' first.", cfg.FilesDir())
	}
	return obs, nil
}

func writeReport(tables ...render.Table) error {
	format := outputFormat
	if format == "" {
		format = cfg.Output.Format
	}
	if !slices.Contains(render.Formats, format) {
		return fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(render.Formats, ", "))
	}

	if outputPath == "" {
		if format == render.FormatXLSX {
			return fmt.Errorf("xlsx output needs --output")
		}
		return render.Write(os.Stdout, format, tables...)
	}

	if err := writeReportFile(outputPath, format, tables); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", outputPath)
	return nil
}

var createOutput = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// writeReportFile returns the close error too; a failed close may leave a
// partial file behind.
func writeReportFile(path, format string, tables []render.Table) error {
	f, err := createOutput(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := render.Write(f, format, tables...); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
