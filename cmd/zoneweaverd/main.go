package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/zoneweaver-core/pkg/api"
	"github.com/cuemby/zoneweaver-core/pkg/config"
	"github.com/cuemby/zoneweaver-core/pkg/discovery"
	"github.com/cuemby/zoneweaver-core/pkg/events"
	"github.com/cuemby/zoneweaver-core/pkg/executor"
	"github.com/cuemby/zoneweaver-core/pkg/handlers"
	"github.com/cuemby/zoneweaver-core/pkg/log"
	"github.com/cuemby/zoneweaver-core/pkg/metrics"
	"github.com/cuemby/zoneweaver-core/pkg/orchestrator"
	"github.com/cuemby/zoneweaver-core/pkg/reboot"
	"github.com/cuemby/zoneweaver-core/pkg/registry"
	"github.com/cuemby/zoneweaver-core/pkg/retention"
	"github.com/cuemby/zoneweaver-core/pkg/scheduler"
	"github.com/cuemby/zoneweaver-core/pkg/store"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "zoneweaverd",
	Short:   "zoneweaverd - host control plane for illumos zone task orchestration",
	Version: Version,
}

var configPath string

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"zoneweaverd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/zoneweaverd/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error), overrides config")
	rootCmd.PersistentFlags().Bool("log-json", false, "Force JSON log output, overrides config")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(rebootFlagCmd)
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if json, _ := cmd.Flags().GetBool("log-json"); json {
		cfg.Logging.JSONOutput = true
	}
	return cfg, nil
}

func initLogging(cfg config.Config) {
	log.Init(log.Config{
		Level:      log.Level(cfg.Logging.Level),
		JSONOutput: cfg.Logging.JSONOutput,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the zoneweaverd daemon: task scheduler, discovery, retention, and admin API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		initLogging(cfg)
		logger := log.WithComponent("main")
		metrics.SetVersion(Version)

		st, err := store.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		exec := executor.New(
			time.Duration(cfg.Executor.DefaultTimeoutMs)*time.Millisecond,
			cfg.Logging.PerformanceThresholdMs,
		)

		rebootStore := reboot.New(cfg.RebootFlag.Path, reboot.DefaultUptime, broker)
		if cleared, err := rebootStore.CheckAndClearAfterReboot(); err != nil {
			logger.Warn().Err(err).Msg("reboot flag check failed")
		} else if cleared {
			logger.Info().Msg("reboot flag cleared: host rebooted since it was set")
		}

		// The orchestrator's ZoneStopper is built directly on the executor,
		// not on the handler table: pkg/handlers.New needs an *Orchestrator
		// up front (for system_host_shutdown's zone-orchestration step), so
		// the orchestrator can't depend on the handler table in turn without
		// a cycle. Both ultimately run the same zoneadm halt.
		stopZone := func(ctx context.Context, zoneName string) error {
			cmd := fmt.Sprintf("zoneadm -z %s halt", zoneName)
			res := exec.Execute(ctx, cmd, 0)
			if !res.OK {
				if res.Err != nil {
					return res.Err
				}
				return fmt.Errorf("zoneadm halt %s: %s", zoneName, res.Stderr)
			}
			return nil
		}
		orch := orchestrator.New(stopZone)

		h := handlers.New(exec, rebootStore, orch)
		reg := registry.New(h.All(), h.Categories())

		sched := scheduler.New(st, reg, broker, cfg.Zones.MaxConcurrentTasks, time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
		logger.Info().Msg("scheduler started")

		disc := discovery.New(st, cfg.Zones.DiscoveryInterval, cfg.Zones.AutoDiscovery)
		disc.Start()
		defer disc.Stop()
		logger.Info().Bool("auto_discovery", cfg.Zones.AutoDiscovery).Msg("discovery driver started")

		clean := retention.New(st, cfg.HostMonitoring.Retention.SweepInterval, cfg.HostMonitoring.Retention.Tasks)
		clean.Start()
		defer clean.Stop()
		logger.Info().Msg("retention cleaner started")

		collector := metrics.NewCollector(st, 15*time.Second)
		collector.Start()
		defer collector.Stop()

		srv := api.NewServer(api.Config{
			ListenAddr:             cfg.Server.ListenAddr,
			DefaultPaginationLimit: cfg.Zones.DefaultPaginationLimit,
		}, st, reg, sched, orch, h.ZoneInventory)

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil {
				errCh <- fmt.Errorf("api server error: %w", err)
			}
		}()
		logger.Info().Str("addr", cfg.Server.ListenAddr).Msg("admin API listening")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			logger.Info().Msg("shutdown signal received")
		case err := <-errCh:
			logger.Error().Err(err).Msg("api server failed")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api server shutdown error")
		}

		logger.Info().Msg("shutdown complete")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the task store schema without starting the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		st, err := store.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		fmt.Printf("Schema applied at %s\n", cfg.Database.Path)
		return nil
	},
}
