// Package server implements the acceptor & scheduler (§4.5): a TCP
// listener with address reuse and a short accept timeout so the loop can
// observe a shutdown flag, shaped either as the basic (inline,
// single-request) variant or the threaded (bounded worker pool,
// multi-request) variant. Signal-driven graceful shutdown follows the
// teacher's own shutdownOnSignal in cmd/zoekt-webserver/main.go.
package server

import (
	"net"
	"sync"
	"time"

	"github.com/sourcegraph/log"

	"github.com/wsearchd/wsearchd/internal/engine"
	"github.com/wsearchd/wsearchd/internal/matcher"
	"github.com/wsearchd/wsearchd/internal/pressure"
	"github.com/wsearchd/wsearchd/internal/protocol"
	"github.com/wsearchd/wsearchd/internal/session"
	"github.com/wsearchd/wsearchd/internal/stats"
	"github.com/wsearchd/wsearchd/internal/wordindex"
)

// acceptTimeout bounds how long Accept blocks before the loop re-checks the
// shutdown flag.
const acceptTimeout = 500 * time.Millisecond

// Options configures a Server.
type Options struct {
	Shape                    session.Shape
	Addr                     string
	MaxWorkers               int // threaded only; ignored for ShapeBasic
	MaxConcurrentConnections int
	MaxPatternLen            int
	ReadTimeout              time.Duration
	CacheSize                int
	DefaultMode              matcher.Mode
	MemorySoftLimitBytes     int64
	MaxQuestions             int
	MaxStars                 int
}

// Server owns the listener, the shared (immutable) word index, the
// compiled-pattern cache, the stats registry, and the pressure governor —
// precisely the "server context object" design note §9 calls for instead of
// module-level singletons, which also lets two Servers coexist in a test
// process.
type Server struct {
	opts Options

	idx    *wordindex.Index
	cache  *matcher.Cache
	engine *engine.Engine
	stats  *stats.Registry
	pres   *pressure.Governor
	logger log.Logger

	ln       net.Listener
	shutdown chan struct{}
	work     chan net.Conn
	wg       sync.WaitGroup
}

// New constructs a Server bound to a word index. It does not yet listen;
// call ListenAndServe.
func New(idx *wordindex.Index, opts Options, logger log.Logger) *Server {
	cache := matcher.NewCache(opts.CacheSize)
	s := &Server{
		opts:   opts,
		idx:    idx,
		cache:  cache,
		engine: engine.New(idx, cache),
		stats:  stats.New(),
		pres: pressure.New(opts.MemorySoftLimitBytes, pressure.Limits{
			MaxQuestions: opts.MaxQuestions,
			MaxStars:     opts.MaxStars,
		}),
		logger:   logger,
		shutdown: make(chan struct{}),
	}
	s.pres.SetCacheClearer(cache.Clear)
	return s
}

// Stats exposes the registry for an optional /metrics or /health front end.
func (s *Server) Stats() *stats.Registry { return s.stats }

// Health reports the word count and current memory-pressure flag, the pair
// an optional /health endpoint renders as JSON per §4.9. Not used by the
// wire protocol itself.
func (s *Server) Health() (wordCount int, pressured bool) {
	return s.idx.Len(), s.pres.Pressured()
}

// Reconfigure applies a config reload's effect on runtime knobs: cache
// capacity and the base complexity limits. Per design note §9, the LRU
// cache's existing entries are not preserved across a resize.
func (s *Server) Reconfigure(cacheSize, maxQuestions, maxStars int) {
	s.cache.Resize(cacheSize)
	s.pres.SetBase(pressure.Limits{MaxQuestions: maxQuestions, MaxStars: maxStars})
}

// ListenAndServe binds the listener and runs the accept loop until Shutdown
// is called. It blocks.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	if tl, ok := ln.(*net.TCPListener); ok {
		ln = &reusableListener{tl}
	}
	s.ln = ln

	if s.opts.Shape == session.ShapeThreaded {
		s.work = make(chan net.Conn, s.opts.MaxWorkers)
		for i := 0; i < s.opts.MaxWorkers; i++ {
			s.wg.Add(1)
			go s.worker()
		}
	}

	s.logger.Info("listening", log.String("addr", s.opts.Addr))
	for {
		select {
		case <-s.shutdown:
			return s.drain()
		default:
		}

		if tc, ok := s.ln.(interface {
			SetDeadline(time.Time) error
		}); ok {
			tc.SetDeadline(time.Now().Add(acceptTimeout))
		}
		conn, err := s.ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-s.shutdown:
				return s.drain()
			default:
				s.logger.Warn("accept error", log.Error(err))
				continue
			}
		}

		s.acceptOne(conn)
	}
}

// acceptOne implements the backpressure check from §4.4: if the
// active-connection cap is reached, reply 503 and close immediately,
// before any session state is constructed.
func (s *Server) acceptOne(conn net.Conn) {
	if s.stats.ActiveConnections() >= s.opts.MaxConcurrentConnections {
		writeBusyAndClose(conn)
		return
	}
	s.stats.ConnectionOpened()

	if s.opts.Shape == session.ShapeBasic {
		s.serveConn(conn)
		return
	}

	select {
	case s.work <- conn:
	default:
		// Pool saturated despite the connection cap (MaxWorkers <
		// MaxConcurrentConnections): treat as busy rather than
		// blocking the acceptor goroutine.
		writeBusyAndClose(conn)
		s.stats.ConnectionClosed()
	}
}

func (s *Server) worker() {
	defer s.wg.Done()
	for conn := range s.work {
		s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	sess := session.New(conn, session.Deps{
		Engine:        s.engine,
		Stats:         s.stats,
		Pressure:      s.pres,
		Logger:        s.logger,
		Shape:         s.opts.Shape,
		DefaultMode:   s.opts.DefaultMode,
		MaxPatternLen: s.opts.MaxPatternLen,
		ReadTimeout:   s.opts.ReadTimeout,
		StatsSnapshot: s.statsSnapshot,
	})
	defer sess.Close()
	sess.Serve()
}

func (s *Server) statsSnapshot() stats.Snapshot {
	residentBytes, hasResident := s.pres.Observe()
	caches := []stats.CacheInfo{{Name: "pattern", Info: s.cache.Info()}}
	return s.stats.Build(s.idx.Len(), s.pres.Pressured(), residentBytes, hasResident, caches)
}

func writeBusyAndClose(conn net.Conn) {
	defer conn.Close()
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	protocol.WriteBusy(conn)
}

// Shutdown stops accepting new connections, drains the worker pool, and
// closes the listener, matching §4.5's "drain the worker pool, and close
// the listener" shutdown sequence.
func (s *Server) Shutdown() {
	close(s.shutdown)
}

func (s *Server) drain() error {
	if s.ln != nil {
		s.ln.Close()
	}
	if s.work != nil {
		close(s.work)
	}
	s.wg.Wait()
	return nil
}

// reusableListener enables SO_REUSEADDR-equivalent behavior; net.Listen on
// "tcp" already sets SO_REUSEADDR on most platforms, this wrapper exists so
// intent is explicit and future platform-specific tuning has a home.
type reusableListener struct {
	*net.TCPListener
}
