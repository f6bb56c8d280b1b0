// Package server accepts tracker connections and feeds each
// newline-delimited sentence through a protocol decoder, routing the
// resulting telemetry records to the configured sinks.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"trackserv/internal/metrics"
	"trackserv/internal/minifinder"
	"trackserv/internal/position"
	"trackserv/internal/session"
)

type Config struct {
	Addr string

	MaxLineBytes int
	// ReadTimeout cuts off connections that stay silent. Zero disables
	// the deadline.
	ReadTimeout time.Duration
}

// Decoder turns one sentence into at most one telemetry record. A nil
// record with a nil error means the sentence was consumed silently.
type Decoder interface {
	Decode(conn session.ConnID, sentence string) (*position.Position, error)
}

// Sink receives every decoded record. Implementations must be safe for
// concurrent calls; a sink error is logged and counted, never fatal to
// the connection.
type Sink interface {
	HandlePosition(ctx context.Context, p *position.Position) error
}

type namedSink struct {
	name string
	sink Sink
}

type Server struct {
	cfg      Config
	log      *slog.Logger
	dec      Decoder
	protocol string
	sessions *session.Registry
	metrics  *metrics.Metrics
	sinks    []namedSink

	started atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	lnMu sync.Mutex
	ln   net.Listener

	mu    sync.RWMutex
	conns map[session.ConnID]*connState
	lines uint64
}

type connState struct {
	remote   string
	openedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
	lines    uint64
}

func New(cfg Config, dec Decoder, protocol string, sessions *session.Registry, m *metrics.Metrics, log *slog.Logger) (*Server, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("server addr is required")
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 4 * 1024
	}
	if dec == nil {
		return nil, fmt.Errorf("server decoder is nil")
	}
	if sessions == nil {
		return nil, fmt.Errorf("server session registry is nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		cfg:      cfg,
		log:      log,
		dec:      dec,
		protocol: protocol,
		sessions: sessions,
		metrics:  m,
		done:     make(chan struct{}),
		conns:    make(map[session.ConnID]*connState),
	}, nil
}

// AddSink registers a delivery target. Must be called before Start.
func (s *Server) AddSink(name string, sink Sink) {
	if sink == nil {
		return
	}
	s.sinks = append(s.sinks, namedSink{name: name, sink: sink})
}

// Start binds the listener and serves connections until ctx is
// cancelled or Close is called.
func (s *Server) Start(ctx context.Context) error {
	if s.closed.Load() {
		return fmt.Errorf("server is closed")
	}
	if s.started.Swap(true) {
		return fmt.Errorf("server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.lnMu.Lock()
	s.ln = ln
	s.lnMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		defer close(s.done)
		<-runCtx.Done()
		_ = ln.Close()
	}()

	go s.acceptLoop(runCtx, ln)

	s.log.Info("ingest server listening", "addr", ln.Addr().String(), "protocol", s.protocol)
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.closed.Swap(true) {
		return
	}
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	id := uuid.New()
	state := &connState{
		remote:   conn.RemoteAddr().String(),
		openedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.conns[id] = state
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.Connections.Inc()
	}
	s.log.Debug("connection opened", "conn", id, "remote", state.remote)

	defer func() {
		s.sessions.Release(id)
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.Connections.Dec()
		}
		s.log.Debug("connection closed", "conn", id, "remote", state.remote)
	}()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024), s.cfg.MaxLineBytes)

	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("read ended", "conn", id, "remote", state.remote, "error", err)
			}
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		state.mu.Lock()
		state.lastSeen = time.Now().UTC()
		state.lines++
		state.mu.Unlock()
		s.mu.Lock()
		s.lines++
		s.mu.Unlock()

		s.handleLine(ctx, id, line)
	}
}

func (s *Server) handleLine(ctx context.Context, id session.ConnID, line string) {
	p, err := s.dec.Decode(id, line)

	if s.metrics != nil {
		s.metrics.Sentences.WithLabelValues(s.protocol, classify(line, p, err)).Inc()
	}

	if err != nil {
		// Per-sentence failure; the connection stays up.
		s.log.Warn("sentence dropped", "conn", id, "protocol", s.protocol, "error", err)
		return
	}
	if p == nil {
		return
	}

	if s.metrics != nil {
		s.metrics.Positions.Inc()
	}
	for _, ns := range s.sinks {
		if err := ns.sink.HandlePosition(ctx, p); err != nil {
			if s.metrics != nil {
				s.metrics.SinkErrors.WithLabelValues(ns.name).Inc()
			}
			s.log.Warn("sink delivery failed", "sink", ns.name, "device", p.DeviceID, "error", err)
		}
	}
}

func classify(line string, p *position.Position, err error) string {
	switch {
	case errors.Is(err, minifinder.ErrInvalidSentence):
		return metrics.ResultInvalid
	case errors.Is(err, minifinder.ErrUnsupportedSentence):
		return metrics.ResultUnsupported
	case errors.Is(err, minifinder.ErrUnknownType):
		return metrics.ResultUnknown
	case err != nil:
		return metrics.ResultInvalid
	case p != nil:
		return metrics.ResultDecoded
	case strings.HasPrefix(line, "!1,"):
		return metrics.ResultRegistration
	default:
		return metrics.ResultUnbound
	}
}

// ConnSnapshot describes one open connection for status output.
type ConnSnapshot struct {
	Remote      string `json:"remote"`
	OpenedUTC   string `json:"opened_utc"`
	LastSeenUTC string `json:"last_seen_utc,omitempty"`
	Lines       uint64 `json:"lines"`
}

// Snapshot summarizes the server's live state.
type Snapshot struct {
	Addr        string         `json:"addr"`
	Lines       uint64         `json:"lines"`
	Connections []ConnSnapshot `json:"connections"`
}

func (s *Server) Snapshot() Snapshot {
	out := Snapshot{Addr: s.Addr()}

	s.mu.RLock()
	out.Lines = s.lines
	out.Connections = make([]ConnSnapshot, 0, len(s.conns))
	for _, c := range s.conns {
		c.mu.Lock()
		cs := ConnSnapshot{
			Remote:    c.remote,
			OpenedUTC: c.openedAt.Format(time.RFC3339Nano),
			Lines:     c.lines,
		}
		if !c.lastSeen.IsZero() {
			cs.LastSeenUTC = c.lastSeen.UTC().Format(time.RFC3339Nano)
		}
		c.mu.Unlock()
		out.Connections = append(out.Connections, cs)
	}
	s.mu.RUnlock()

	sort.Slice(out.Connections, func(i, j int) bool {
		return out.Connections[i].Remote < out.Connections[j].Remote
	})
	return out
}
