package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/focusdial/internal/api"
	"github.com/good-yellow-bee/focusdial/internal/events"
	"github.com/good-yellow-bee/focusdial/internal/metrics"
	"github.com/good-yellow-bee/focusdial/internal/storage"
	"github.com/good-yellow-bee/focusdial/internal/timeline"
	"github.com/good-yellow-bee/focusdial/internal/tracker"
	"github.com/good-yellow-bee/focusdial/pkg/config"
)

var (
	configFile  string
	httpAddr    string
	metricsAddr string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "focusdial-server",
	Short: "Focus Dial server - time tracking for the Focus Dial",
	Long: `focusdial-server receives start and stop events from Focus Dial devices,
records them as time entries and serves the REST API used to review and
edit the tracked time.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("focusdial-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-address", "", "Prometheus listen address (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every request")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg := DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	if httpAddr != "" {
		cfg.Server.HTTPAddress = httpAddr
	}
	if metricsAddr != "" {
		cfg.Server.MetricsAddress = metricsAddr
	}
	cfg.Verbose = verbose

	secret, err := jwtSecret()
	if err != nil {
		return err
	}

	// Auto-create data directory
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	if err := store.EnsureAdminUser(); err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}
	log.Printf("database initialized at %s", cfg.Database.Path)

	loc, _ := cfg.Location()
	settings := timeline.NewSettings(loc, cfg.WorkdayStartHour())
	broker := events.NewBroker(0)
	timer := tracker.NewService(store, broker, cfg.Policy())

	srv, err := api.New(cfg.APIConfig(secret), api.Deps{
		Storage:  store,
		Broker:   broker,
		Tracker:  timer,
		Timeline: settings,
	})
	if err != nil {
		return fmt.Errorf("create api server: %w", err)
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })

	if cfg.Server.MetricsAddress != "" {
		ms := metrics.NewServer(cfg.Server.MetricsAddress, config.GetBuildInfo())
		g.Go(func() error { return ms.Run(ctx) })
	}

	if configFile != "" {
		watcher, err := NewConfigWatcher(configFile, func(c *Config) {
			timer.SetPolicy(c.Policy())
			loc, _ := c.Location()
			settings.Set(loc, c.WorkdayStartHour())
			log.Printf("applied webhook.project_update=%s, timeline zone=%s start=%02d:00",
				c.Policy(), loc, c.WorkdayStartHour())
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return watcher.Run(ctx) })
	}

	log.Printf("starting focusdial-server %s", config.Version)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}
