package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/ghostkg/internal/agent"
	"github.com/lazypower/ghostkg/internal/cache"
	"github.com/lazypower/ghostkg/internal/config"
	"github.com/lazypower/ghostkg/internal/fsrs"
	"github.com/lazypower/ghostkg/internal/server"
	"github.com/lazypower/ghostkg/internal/store"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to config file (YAML)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var viewCache *cache.Cache
	if cfg.Cache.Enabled {
		viewCache = cache.New(cfg.Cache.Capacity, cfg.Cache.TTLDuration())
	}

	st := store.New(db, viewCache, fsrs.NewScheduler(), store.Options{
		StoreLogContent: cfg.Log.StoreContent,
	})
	manager := agent.NewManager(st)

	srv := server.New(st, manager, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "ghostkg serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		if viewCache != nil {
			fmt.Fprintf(os.Stderr, "  cache: %d entries\n", cfg.Cache.Capacity)
		}
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
