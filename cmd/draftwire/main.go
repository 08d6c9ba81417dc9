package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/draftwire/draftwire/internal/config"
	"github.com/draftwire/draftwire/internal/database"
	"github.com/draftwire/draftwire/internal/fetch"
	"github.com/draftwire/draftwire/internal/ingest"
	"github.com/draftwire/draftwire/internal/notify"
	"github.com/draftwire/draftwire/internal/pipeline"
	"github.com/draftwire/draftwire/internal/server"
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
	Use:     "draftwire",
	Short:   "LLM-driven news article generation",
	Long:    "Draftwire turns raw news sources into finished articles through staged LLM pipelines.",
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
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(serveCmd)
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, "draftwire.db"))
}

func newEngine(db *database.DB) *pipeline.Engine {
	var notifier pipeline.Notifier
	if cfg.Notify.Enabled && cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL)
	}
	return pipeline.New(cfg, db, notifier)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("draftwire", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/draftwire/",
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
		fmt.Println("Edit it to configure the step API endpoint and model pricing.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
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

		fmt.Println("Articles:")
		fmt.Printf("  Total: %d\n", stats.TotalArticles)
		fmt.Printf("  Completed: %d\n", stats.CompletedArticles)
		fmt.Printf("  Failed: %d\n", stats.FailedArticles)
		fmt.Printf("  In progress: %d\n", stats.InProgress)
		fmt.Println("\nRuns:")
		fmt.Printf("  Total: %d\n", stats.TotalRuns)
		fmt.Printf("  Total cost: $%.4f\n", stats.TotalCostUSD)
		return nil
	},
}

// --- create command ---

var (
	createRun   bool
	createFetch bool
)

var createCmd = &cobra.Command{
	Use:   "create <request.json>",
	Short: "Create an article version from a request file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading request file: %w", err)
		}

		var req pipeline.Request
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("decoding request: %w", err)
		}
		req.Slug = database.NormalizeSlug(req.Slug)

		if createFetch {
			fetcher := fetch.NewSourceFetcher(15 * time.Second)
			result := fetcher.ResolveSources(cmd.Context(), req.Sources)
			fmt.Printf("Sources: %d fetched, %d already had text, %d failed\n",
				result.Fetched, result.Skipped, result.Failed)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		article, err := pipeline.CreateArticle(db, &req)
		if err != nil {
			return err
		}
		fmt.Printf("Created article %d: %s v%d (%s)\n", article.ID, article.Slug, article.Version, article.Status)

		if createRun {
			return runArticle(cmd.Context(), db, article.ID)
		}
		fmt.Printf("Run it with: draftwire run %d\n", article.ID)
		return nil
	},
}

func init() {
	createCmd.Flags().BoolVar(&createRun, "run", false, "Run the pipeline immediately")
	createCmd.Flags().BoolVar(&createFetch, "fetch", false, "Fetch source text for sources that only have a URL")
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run <article-id>",
	Short: "Run the generation pipeline for a stored article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var articleID int64
		if _, err := fmt.Sscanf(args[0], "%d", &articleID); err != nil {
			return fmt.Errorf("invalid article id %q", args[0])
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return runArticle(cmd.Context(), db, articleID)
	},
}

func runArticle(ctx context.Context, db *database.DB, articleID int64) error {
	engine := newEngine(db)

	fmt.Printf("Running pipeline for article %d...\n", articleID)
	result := engine.ExecuteByArticleID(ctx, articleID)
	if !result.Success {
		return fmt.Errorf("pipeline failed: %s", result.Error)
	}

	article, err := db.GetArticle(articleID)
	if err != nil || article == nil {
		return fmt.Errorf("reloading article %d", articleID)
	}

	fmt.Printf("\nCompleted: %s v%d\n", article.Slug, article.Version)
	if article.Headline != nil {
		fmt.Printf("Headline: %s\n", *article.Headline)
	}
	runs, _ := db.GetRunsForArticle(articleID)
	if len(runs) > 0 {
		last := runs[len(runs)-1]
		fmt.Printf("Tokens: %d in / %d out, cost $%.4f\n", last.InputTokens, last.OutputTokens, last.CostUSD)
	}
	return nil
}

// --- ingest command ---

var (
	ingestOrg      string
	ingestUser     string
	ingestDaysBack int
	ingestRun      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <feed-url>",
	Short: "Build an article request from an RSS/Atom feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fetcher := fetch.NewSourceFetcher(15 * time.Second)
		ing := ingest.New(fetcher)

		meta := pipeline.Metadata{UserID: ingestUser, OrgID: ingestOrg}
		req, err := ing.BuildRequest(cmd.Context(), args[0], meta, ingestDaysBack)
		if err != nil {
			return err
		}
		fmt.Printf("Built %s request with %d source(s) from feed\n", req.Type, len(req.Sources))

		article, err := pipeline.CreateArticle(db, req)
		if err != nil {
			return err
		}
		fmt.Printf("Created article %d: %s v%d\n", article.ID, article.Slug, article.Version)

		if ingestRun {
			return runArticle(cmd.Context(), db, article.ID)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestOrg, "org", "default", "Organization ID for the article")
	ingestCmd.Flags().StringVar(&ingestUser, "user", "ingest", "User ID for the article")
	ingestCmd.Flags().IntVar(&ingestDaysBack, "days-back", 1, "Only use feed entries this many days old")
	ingestCmd.Flags().BoolVar(&ingestRun, "run", false, "Run the pipeline immediately")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, newEngine(db), port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}
