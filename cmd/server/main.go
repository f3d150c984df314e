package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/armalogs/backend/internal/api"
	"github.com/armalogs/backend/internal/config"
	"github.com/armalogs/backend/internal/extract"
	"github.com/armalogs/backend/internal/parser"
	"github.com/armalogs/backend/internal/session"
	"github.com/armalogs/backend/internal/storage"
	"github.com/armalogs/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve playtime reports over HTTP",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				// Get the executable's directory for config resolution
				exePath, err := os.Executable()
				if err != nil {
					return fmt.Errorf("failed to get executable path: %w", err)
				}
				configPath = filepath.Join(filepath.Dir(exePath), "armalogs.yaml")
			}
			if err := run(configPath); err != nil {
				fmt.Printf("%v\n", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file (created with defaults if missing)")

	return cmd
}

func run(configPath string) error {
	if err := config.LoadDotEnv(filepath.Join(filepath.Dir(configPath), ".env")); err != nil {
		return err
	}

	cfg, err := config.LoadOrCreate(config.NewViper(), configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	markers, err := parser.LoadMarkers(cfg.Extract.MarkersFile)
	if err != nil {
		return fmt.Errorf("failed to load markers: %w", err)
	}

	// Initialize storage
	fileStore, err := storage.NewLocalStore(cfg.Storage.UploadsDirectory)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	reportMgr := session.NewManager(fileStore)
	extractMgr := extract.NewManager(fileStore, extract.Options{
		Pattern: cfg.Extract.LogPattern,
		Workers: cfg.Extract.Workers,
		Markers: markers,
	}, cfg.Storage.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background report cleanup
	ttl := time.Duration(cfg.Report.TTLMinutes) * time.Minute
	interval := time.Duration(cfg.Report.CleanupIntervalMinutes) * time.Minute
	if interval > 0 {
		go reportMgr.RunCleanup(ctx, interval, ttl)
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					extractMgr.CleanupOldJobs(ttl)
				}
			}
		}()
	}

	if cfg.Extract.Schedule != "" {
		scheduler, err := extract.NewScheduler(extractMgr, cfg.Extract.Schedule, cfg.Extract.Roots)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	e := echo.New()
	e.HideBanner = true
	api.SetupMiddleware(e, cfg.Server)
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Store:            fileStore,
		ReportMgr:        reportMgr,
		ExtractMgr:       extractMgr,
		RecentFilesLimit: cfg.Report.RecentFilesLimit,
		Version:          Version,
	}))

	embeddedMode := web.HasEmbeddedFiles()
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			fmt.Printf("Warning: failed to register static routes: %v\n", err)
			embeddedMode = false
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Arma Playtime Report Server                     ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Format:     %-45s║\n", cfg.Storage.Format)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.Storage.DataDirectory)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("Server error: %v\n", err)
			stop()
		}
	}()

	<-ctx.Done()
	fmt.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
