// Command rehab-server serves live exercise evaluation over HTTP.
//
//	rehab-server [-listen :8080] [-db rehab.db] [-config tuning.json]
//	rehab-server [-db rehab.db] migrate <up|down|status|version N|force N>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/banshee-data/rehab.report/internal/api"
	"github.com/banshee-data/rehab.report/internal/config"
	"github.com/banshee-data/rehab.report/internal/db"
	"github.com/banshee-data/rehab.report/internal/metrics"
	"github.com/banshee-data/rehab.report/internal/timeutil"
	"github.com/banshee-data/rehab.report/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbPath      = flag.String("db", "rehab.db", "sqlite database for finished sessions, empty to disable storage")
	configPath  = flag.String("config", "", "tuning config JSON file (default: built-in defaults)")
	namespace   = flag.String("metrics-namespace", "rehab", "Prometheus metrics namespace")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("rehab-server"))
		return
	}

	if flag.NArg() > 0 && flag.Arg(0) == "migrate" {
		if *dbPath == "" {
			log.Fatal("-db is required for migrate")
		}
		if err := db.RunMigrateCommand(flag.Args()[1:], *dbPath, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	var database *db.DB
	if *dbPath != "" {
		var err error
		if database, err = db.NewDB(*dbPath); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewBuildInfoCollector(), collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewManager(*namespace, "server", reg)

	srv := api.NewServer(api.Config{
		DB:       database,
		Tuning:   tuning,
		Metrics:  m,
		Gatherer: reg,
		Clock:    timeutil.RealClock{},
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.RunSweeper(ctx)
		log.Print("idle sweeper terminated")
	}()

	server := &http.Server{
		Addr:              *listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("failed to shutdown server gracefully: %v", err)
		}
		log.Print("HTTP server routine stopped")
	}()

	log.Printf("%s listening on %s", version.String("rehab-server"), *listen)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to start server: %v", err)
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
