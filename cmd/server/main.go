package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tuannm99/novasql/internal"
	"github.com/tuannm99/novasql/internal/engine"
	"github.com/tuannm99/novasql/internal/storage"
)

func main() {
	workDir := flag.String("data-dir", "./data", "Working directory for database files")
	configPath := flag.String("config", "", "Path to a YAML config file (buffer_pool.pool_size/replacer_k/bucket_size override the defaults)")
	flag.Parse()

	if err := os.MkdirAll(*workDir, storage.FileMode0755); err != nil {
		slog.Error("failed to create data directory", "dir", *workDir, "err", err)
		os.Exit(1)
	}

	poolSize, replacerK, bucketSize := 0, 0, 0
	if *configPath != "" {
		cfg, err := internal.LoadConfig(*configPath)
		if err != nil {
			slog.Error("failed to load config", "path", *configPath, "err", err)
			os.Exit(1)
		}
		poolSize = cfg.BufferPool.PoolSize
		replacerK = cfg.BufferPool.ReplacerK
		bucketSize = cfg.BufferPool.BucketSize
	}

	db := engine.NewDatabaseWithPoolConfig(*workDir, poolSize, replacerK, bucketSize)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("shutting down")
		_ = db.Close()
		os.Exit(0)
	}()

	slog.Info("novasql started", "dataDir", *workDir)
	// TODO: wire the SQL wire protocol server (see cmd/client) onto db.

	select {}
}
