package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/TobiSchelling/vhireport/internal/config"
	"github.com/TobiSchelling/vhireport/internal/database"
	"github.com/TobiSchelling/vhireport/internal/fetch"
	"github.com/TobiSchelling/vhireport/internal/pipeline"
	"github.com/TobiSchelling/vhireport/internal/region"
	"github.com/TobiSchelling/vhireport/internal/render"
	"github.com/TobiSchelling/vhireport/internal/server"
	"github.com/TobiSchelling/vhireport/internal/store"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "vhireport",
	Short:   "Vegetation Health Index reports for Ukraine",
	Long:    "vhireport downloads weekly NOAA VHI series per region and reports statistics and drought years.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if verbose {
			cfg.Logging.Level = "DEBUG"
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("vhireport", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/vhireport/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to change the source years, drought rule, or data directory.")
		return nil
	},
}

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the registered regions and when each was last fetched",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		t := render.Table{Name: "regions", Headers: []string{"id", "region", "last_fetched"}}
		for _, r := range region.Default().All() {
			last, err := db.GetLastFetch(r.Name)
			if err != nil {
				return fmt.Errorf("reading ledger: %w", err)
			}
			when := "-"
			if last != nil {
				when = last.AttemptedAt
			}
			t.Rows = append(t.Rows, []any{r.ID, r.Name, when})
		}
		return render.WriteText(os.Stdout, t)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored files and fetch history",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		st, err := store.New(cfg.FilesDir())
		if err != nil {
			return err
		}
		files, err := st.List()
		if err != nil {
			return err
		}

		fmt.Printf("Data directory: %s\n", cfg.GetDataDir())
		fmt.Printf("Ledger: %s\n\n", db.Path())
		fmt.Println("Files:")
		fmt.Printf("  Stored: %d of %d regions\n", len(files), region.Default().Len())
		fmt.Println("\nFetch runs:")
		fmt.Printf("  Total: %d\n", stats.Runs)
		if stats.LastRunID != "" {
			fmt.Printf("  Last: %s (%s)\n", stats.LastRunStarted, stats.LastRunID)
		}
		fmt.Printf("  Fetched: %d\n", stats.Fetched)
		fmt.Printf("  Skipped: %d\n", stats.Skipped)
		fmt.Printf("  Failed: %d\n", stats.Failed)
		fmt.Printf("  Regions ever fetched: %d\n", stats.RegionsFetched)
		return nil
	},
}

// --- fetch command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download every region not stored yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeDB, err := newPipeline()
		if err != nil {
			return err
		}
		defer closeDB()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		fmt.Printf("Fetching %d regions into %s...\n", region.Default().Len(), cfg.FilesDir())
		result := pipe.Fetch(ctx)
		printFetchResult(result)
		return nil
	},
}

func printFetchResult(result *fetch.Result) {
	fmt.Println("\nFetch complete:")
	fmt.Printf("  Fetched: %d\n", result.Fetched)
	fmt.Printf("  Already stored: %d\n", result.Skipped)
	fmt.Printf("  Failed: %d\n", result.Failed)

	if len(result.Failures) > 0 {
		fmt.Println("\nFailures:")
		names := make([]string, 0, len(result.Failures))
		for name := range result.Failures {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %s: %v\n", name, result.Failures[name])
		}
	}
}

// --- run command ---

var (
	runYear  string
	runYears []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: fetch -> load -> aggregate -> report",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeDB, err := newPipeline()
		if err != nil {
			return err
		}
		defer closeDB()

		year := runYear
		if year == "" {
			year = cfg.Reports.Year
		}
		years := runYears
		if len(years) == 0 {
			years = cfg.Reports.Years
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		result := pipe.Run(ctx, year, years)
		for i, step := range result.Steps {
			fmt.Fprintf(os.Stderr, "\nStep %d/3: %s\n", i+1, step.Name)
			fmt.Fprintf(os.Stderr, "  %s\n", step.Summary)
			if step.Err != nil {
				fmt.Fprintf(os.Stderr, "  Error: %v\n", step.Err)
			}
		}
		if result.Reports == nil {
			return fmt.Errorf("no data to report")
		}
		fmt.Fprintln(os.Stderr)

		return writeReport(result.Reports.Tables()...)
	},
}

func init() {
	runCmd.Flags().StringVar(&runYear, "year", "", "Year for the single-year listing (default from config)")
	runCmd.Flags().StringSliceVar(&runYears, "years", nil, "Years for the multi-year listing (default from config)")
	addOutputFlags(runCmd)
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeDB, err := newPipeline()
		if err != nil {
			return err
		}
		defer closeDB()

		port := servePort
		if !cmd.Flags().Changed("port") {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(pipe, pipe.Ledger(), port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DBPath())
}

// newPipeline wires the default registry, the file store, the HTTP feed and
// the ledger. The returned func closes the ledger.
func newPipeline() (*pipeline.Pipeline, func(), error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(cfg.FilesDir())
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	pipe := pipeline.New(cfg, region.Default(), st, fetch.NewHTTPFeed(cfg.Source), db)
	return pipe, func() { db.Close() }, nil
}
