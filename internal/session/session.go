// Package session implements the per-connection state machine (§4.4):
// READING -> PARSING -> VALIDATING -> EXECUTING -> FRAMING, looping back to
// READING for the multi-request (threaded) server or terminating after one
// request for the basic server.
package session

import (
	"bufio"
	"encoding/json"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/xid"
	"github.com/sourcegraph/log"

	"github.com/wsearchd/wsearchd/internal/engine"
	"github.com/wsearchd/wsearchd/internal/matcher"
	"github.com/wsearchd/wsearchd/internal/pressure"
	"github.com/wsearchd/wsearchd/internal/protocol"
	"github.com/wsearchd/wsearchd/internal/stats"
)

// Shape distinguishes the basic (single-shot) server from the threaded
// (multi-request) server, which differ in looping behavior, default-mode
// handling, and BATCH/partial-mode support.
type Shape int

const (
	ShapeBasic Shape = iota
	ShapeThreaded
)

// Deps bundles the shared, immutable-after-construction collaborators a
// Session needs: the matching engine, the stats registry, the
// memory-pressure governor, and per-request tuning knobs. Threading these
// through a small struct (rather than module-level globals) is exactly
// design note §9's "members of a server context object, not module-level
// singletons".
type Deps struct {
	Engine        *engine.Engine
	Stats         *stats.Registry
	Pressure      *pressure.Governor
	Logger        log.Logger
	Shape         Shape
	DefaultMode   matcher.Mode
	MaxPatternLen int
	ReadTimeout   time.Duration

	// StatsSnapshot assembles the full STATS payload, including word
	// count and cache info that live on the server context rather than
	// on any single Session.
	StatsSnapshot func() stats.Snapshot
}

// Session is one accepted connection.
type Session struct {
	id      xid.ID
	conn    net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	peer    string
	deps    Deps
	logger  log.Logger
	closed  bool
}

// New wraps an accepted connection. It does NOT increment the active
// connections counter; callers do that around acquisition per §5's
// resource-lifecycle rule so the acceptor can reject before construction
// when backpressure applies.
func New(conn net.Conn, deps Deps) *Session {
	id := xid.New()
	return &Session{
		id:     id,
		conn:   conn,
		r:      bufio.NewReader(conn),
		w:      bufio.NewWriter(conn),
		peer:   conn.RemoteAddr().String(),
		deps:   deps,
		logger: deps.Logger.With(log.String("session", id.String()), log.String("peer", conn.RemoteAddr().String())),
	}
}

// Close releases the underlying connection. Idempotent: active_connections
// is decremented exactly once even across multiple Close calls.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.w.Flush()
	s.conn.Close()
	s.deps.Stats.ConnectionClosed()
}

// Serve runs the session's request loop. The basic shape processes exactly
// one request and returns; the threaded shape loops until QUIT, EOF, or an
// unrecoverable error.
func (s *Session) Serve() {
	for {
		cont := s.handleOneRequest()
		if !cont || s.deps.Shape == ShapeBasic {
			return
		}
	}
}

// handleOneRequest runs one full READING->FRAMING cycle and reports
// whether the session should continue reading more requests.
func (s *Session) handleOneRequest() bool {
	start := time.Now()

	// READING
	if s.deps.ReadTimeout > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.deps.ReadTimeout))
	}
	line, err := s.r.ReadString('\n')
	if err != nil {
		if line == "" {
			if isTimeout(err) {
				s.writeBadRequest("timeout")
				s.Close()
				return false
			}
			// EOF or broken pipe: no response attempted.
			s.logger.Debug("session closed by peer", log.Error(err))
			s.Close()
			return false
		}
		// Partial line followed by EOF: treat as a malformed request.
	}
	line = strings.TrimRight(line, "\r\n")

	// SIZE GUARD
	if len(line) > s.deps.MaxPatternLen {
		s.writeBadRequest("pattern too long")
		s.deps.Stats.ResponseSent("400")
		return true
	}

	// DECODE
	if !utf8.ValidString(line) {
		s.writeBadRequest("non-utf8")
		s.deps.Stats.ResponseSent("400")
		return true
	}

	// PARSING
	req, err := protocol.Parse(line)
	if err != nil {
		reason, _ := protocol.IsInvalidReason(err)
		s.writeBadRequest(reason)
		s.deps.Stats.ResponseSent("400")
		return true
	}
	s.deps.Stats.RequestReceived(string(req.Command))

	// VALIDATING + EXECUTING + FRAMING
	cont := s.dispatch(req)

	elapsed := time.Since(start)
	q, stars := 0, 0
	if req.Pattern != "" {
		q, stars = matcher.CountWildcards(req.Pattern)
	}
	s.deps.Stats.ObserveLatency(float64(elapsed.Milliseconds()), q, stars)

	return cont
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

func (s *Session) writeBadRequest(reason string) {
	protocol.WriteBadRequest(s.w, reason)
	s.w.Flush()
}

// dispatch implements step 4 of §4.4's per-request pipeline. It returns
// whether the session should keep reading more requests.
func (s *Session) dispatch(req *protocol.Request) bool {
	switch req.Command {
	case protocol.CmdQuit:
		s.Close()
		return false

	case protocol.CmdStats:
		s.handleStats()
		s.deps.Stats.ResponseSent("200")
		return true

	case protocol.CmdCount:
		return s.handleCount(req)

	case protocol.CmdFind:
		return s.handleFind(req)

	case protocol.CmdFindMulti:
		return s.handleFindMulti(req)

	case protocol.CmdBatch:
		if s.deps.Shape == ShapeBasic {
			s.writeBadRequest("unknown command")
			s.deps.Stats.ResponseSent("400")
			return true
		}
		return s.handleBatch(req)

	default:
		s.writeBadRequest("unknown command")
		s.deps.Stats.ResponseSent("400")
		return true
	}
}

func (s *Session) resolveMode(req *protocol.Request) (matcher.Mode, bool) {
	switch req.Mode {
	case protocol.ModeExact:
		return matcher.Exact, true
	case protocol.ModePartial:
		if s.deps.Shape == ShapeBasic {
			return 0, false
		}
		return matcher.Partial, true
	default:
		if s.deps.Shape == ShapeBasic {
			return matcher.Exact, true
		}
		return s.deps.DefaultMode, true
	}
}

// checkComplexity implements the complexity guard from §4.4: reject
// patterns whose '?'/'*' counts exceed the governor's current effective
// limits (halved under memory pressure).
func (s *Session) checkComplexity(pattern string) (reason string, ok bool) {
	s.deps.Pressure.Observe()
	limits := s.deps.Pressure.EffectiveLimits()
	q, stars := matcher.CountWildcards(pattern)
	if q > limits.MaxQuestions {
		return formatComplexity("?", "wildcards", q, limits.MaxQuestions), false
	}
	if stars > limits.MaxStars {
		return formatComplexity("*", "wildcards", stars, limits.MaxStars), false
	}
	return "", true
}

func formatComplexity(symbol, noun string, got, limit int) string {
	return "pattern too complex: too many '" + symbol + "' " + noun + " (> " + itoa(limit) + ")"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (s *Session) handleCount(req *protocol.Request) bool {
	mode, ok := s.resolveMode(req)
	if !ok {
		s.writeBadRequest("mode not supported")
		s.deps.Stats.ResponseSent("400")
		return true
	}
	if reason, ok := s.checkComplexity(req.Pattern); !ok {
		s.writeBadRequest(reason)
		s.deps.Stats.ResponseSent("400")
		return true
	}

	count, err := s.count(req.Pattern, mode)
	if err != nil {
		s.writeBadRequest("pattern too complex: internal")
		s.deps.Stats.ResponseSent("400")
		return true
	}
	if count == 0 {
		protocol.WriteNotFound(s.w)
		s.w.Flush()
		s.deps.Stats.ResponseSent("404")
		return true
	}
	protocol.WriteFramed(s.w, protocol.StatusOK, count, nil)
	s.w.Flush()
	s.deps.Stats.ResponseSent("200")
	return true
}

func (s *Session) count(pattern string, mode matcher.Mode) (int, error) {
	if mode == matcher.Partial {
		return s.deps.Engine.CountPartial(pattern)
	}
	return s.deps.Engine.CountExact(pattern)
}

func (s *Session) find(pattern string, mode matcher.Mode) ([]string, error) {
	if mode == matcher.Partial {
		return s.deps.Engine.FindPartial(pattern)
	}
	return s.deps.Engine.FindExact(pattern)
}

func (s *Session) handleFind(req *protocol.Request) bool {
	mode, ok := s.resolveMode(req)
	if !ok {
		s.writeBadRequest("mode not supported")
		s.deps.Stats.ResponseSent("400")
		return true
	}
	if reason, ok := s.checkComplexity(req.Pattern); !ok {
		s.writeBadRequest(reason)
		s.deps.Stats.ResponseSent("400")
		return true
	}

	words, err := s.find(req.Pattern, mode)
	if err != nil {
		s.writeBadRequest("pattern too complex: internal")
		s.deps.Stats.ResponseSent("400")
		return true
	}
	s.respondFind(words, req)
	return true
}

func (s *Session) handleFindMulti(req *protocol.Request) bool {
	mode, ok := s.resolveMode(req)
	if !ok {
		s.writeBadRequest("mode not supported")
		s.deps.Stats.ResponseSent("400")
		return true
	}

	tokens := strings.Fields(req.Pattern)
	if len(tokens) == 0 {
		s.writeBadRequest("missing pattern")
		s.deps.Stats.ResponseSent("400")
		return true
	}

	var merged []string
	seen := make(map[string]bool)
	for _, tok := range tokens {
		if reason, ok := s.checkComplexity(tok); !ok {
			s.writeBadRequest(reason)
			s.deps.Stats.ResponseSent("400")
			return true
		}
		words, err := s.find(tok, mode)
		if err != nil {
			s.writeBadRequest("pattern too complex: internal")
			s.deps.Stats.ResponseSent("400")
			return true
		}
		for _, w := range words {
			if !seen[w] {
				seen[w] = true
				merged = append(merged, w)
			}
		}
	}
	s.respondFind(merged, req)
	return true
}

// respondFind implements steps 5 (pagination) and 6 (compression) of
// §4.4's pipeline, shared by FIND and FIND_MULTI.
func (s *Session) respondFind(words []string, req *protocol.Request) {
	if len(words) == 0 {
		protocol.WriteNotFound(s.w)
		s.w.Flush()
		s.deps.Stats.ResponseSent("404")
		return
	}

	page := protocol.Paginate(words, req.Range)

	if req.AcceptEncoding == "gzip" && len(page) > 0 {
		body, err := protocol.GzipBody(page)
		if err != nil {
			s.writeBadRequest("pattern too complex: internal")
			s.deps.Stats.ResponseSent("400")
			return
		}
		protocol.WriteFramed(s.w, protocol.StatusOK, 1, []string{body})
		s.w.Flush()
		s.deps.Stats.ResponseSent("200")
		return
	}

	protocol.WriteFramed(s.w, protocol.StatusOK, len(page), page)
	s.w.Flush()
	s.deps.Stats.ResponseSent("200")
}

// batchRequest is the JSON array body BATCH expects.
type batchRequest = []string

func (s *Session) handleBatch(req *protocol.Request) bool {
	mode, ok := s.resolveMode(req)
	if !ok {
		s.writeBadRequest("mode not supported")
		s.deps.Stats.ResponseSent("400")
		return true
	}

	var patterns batchRequest
	if err := json.Unmarshal([]byte(req.Pattern), &patterns); err != nil {
		s.writeBadRequest("invalid batch")
		s.deps.Stats.ResponseSent("400")
		return true
	}

	lines := make([]string, 0, len(patterns))
	for i, p := range patterns {
		count := 0
		if _, ok := s.checkComplexity(p); ok {
			if c, err := s.count(p, mode); err == nil {
				count = c
			}
		}
		lines = append(lines, "COUNT "+itoa(i)+" "+itoa(count))
	}

	protocol.WriteFramed(s.w, protocol.StatusOK, len(lines), lines)
	s.w.Flush()
	s.deps.Stats.ResponseSent("200")
	return true
}

func (s *Session) handleStats() {
	snap := s.deps.StatsSnapshot()
	lines := make([]string, 0, len(snap.Lines))
	for _, kv := range snap.Lines {
		lines = append(lines, kv.Key+" "+kv.Value)
	}
	protocol.WriteFramed(s.w, protocol.StatusOK, len(lines), lines)
	s.w.Flush()
}
