// Command wsearchd-threaded runs the multi-request, thread-pool server
// variant (§4.5 "threaded variant"), including BATCH and mode overrides.
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"time"

	sglog "github.com/sourcegraph/log"

	"github.com/wsearchd/wsearchd/internal/cliutil"
	"github.com/wsearchd/wsearchd/internal/config"
	"github.com/wsearchd/wsearchd/internal/corpusfile"
	"github.com/wsearchd/wsearchd/internal/matcher"
	"github.com/wsearchd/wsearchd/internal/server"
	"github.com/wsearchd/wsearchd/internal/session"
	"github.com/wsearchd/wsearchd/internal/wordindex"
)

func main() {
	wordsPath := flag.String("words", "", "path to the newline-delimited word list")
	configPath := flag.String("config", "", "path to a JSON config file")
	listen := flag.String("listen", "", "override host:port from config")
	flag.Parse()

	liblog := sglog.Init(sglog.Resource{Name: "wsearchd-threaded"})
	defer liblog.Sync()
	logger := sglog.Scoped("wsearchd-threaded", "")

	if *wordsPath == "" {
		logger.Fatal("missing -words")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("loading config", sglog.Error(err))
	}
	if *listen != "" {
		cfg.Host, cfg.Port = cliutil.SplitHostPort(*listen, cfg.Host, cfg.Port)
	}

	words, err := corpusfile.Load(*wordsPath)
	if err != nil {
		logger.Fatal("loading word list", sglog.Error(err))
	}

	idx := wordindex.Build(words)

	defaultMode, err := matcher.ParseMode(cfg.Mode)
	if err != nil {
		defaultMode = matcher.Partial
	}

	srv := server.New(idx, server.Options{
		Shape:                    session.ShapeThreaded,
		Addr:                     cliutil.Addr(cfg),
		MaxWorkers:               cfg.MaxWorkers,
		MaxConcurrentConnections: cfg.MaxConcurrentConnections,
		MaxPatternLen:            cfg.MaxPatternLength,
		ReadTimeout:              time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		CacheSize:                cfg.CacheSize,
		DefaultMode:              defaultMode,
		MemorySoftLimitBytes:     cfg.MemorySoftLimitBytes,
		MaxQuestions:             cfg.MaxQuestions,
		MaxStars:                 cfg.MaxStars,
	}, logger)

	if cfg.ConfigPath != "" {
		stop := make(chan struct{})
		watcher := config.NewWatcher(cfg.ConfigPath, logger, func(reloaded config.Config) {
			srv.Reconfigure(reloaded.CacheSize, reloaded.MaxQuestions, reloaded.MaxStars)
		})
		go watcher.Run(stop)
		defer close(stop)
	}

	if cfg.HealthAddr != "" {
		go serveHealth(cfg.HealthAddr, srv, logger)
	}

	go cliutil.RunUntilSignal(srv.Shutdown)

	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("listen failed", sglog.Error(err))
	}
}

// serveHealth runs a minimal, non-spec-critical /health endpoint reporting
// word count and memory-pressure status as JSON.
func serveHealth(addr string, srv *server.Server, logger sglog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		wordCount, pressured := srv.Health()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			WordCount int  `json:"word_count"`
			Pressured bool `json:"memory_pressure"`
		}{wordCount, pressured})
	})
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("health endpoint stopped", sglog.Error(err))
	}
}
