// Command wsearchd-basic runs the single-request-per-connection server
// variant (§4.5 "basic variant"). Flag parsing and config-file loading are
// explicitly out-of-scope collaborators per spec §1; this main wires them
// up minimally so the package produces a runnable binary.
package main

import (
	"flag"
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

	liblog := sglog.Init(sglog.Resource{Name: "wsearchd-basic"})
	defer liblog.Sync()
	logger := sglog.Scoped("wsearchd-basic", "")

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

	srv := server.New(idx, server.Options{
		Shape:                    session.ShapeBasic,
		Addr:                     cliutil.Addr(cfg),
		MaxConcurrentConnections: cfg.MaxConcurrentConnections,
		MaxPatternLen:            cfg.MaxPatternLength,
		ReadTimeout:              time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		CacheSize:                cfg.CacheSize,
		DefaultMode:              matcher.Exact,
		MemorySoftLimitBytes:     cfg.MemorySoftLimitBytes,
		MaxQuestions:             cfg.MaxQuestions,
		MaxStars:                 cfg.MaxStars,
	}, logger)

	go cliutil.RunUntilSignal(srv.Shutdown)

	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("listen failed", sglog.Error(err))
	}
}
