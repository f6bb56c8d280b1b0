// Package web serves the operational status API and the Prometheus
// metrics endpoint.
package web

import (
	"context"
	"time"

	"trackserv/internal/server"
	"trackserv/internal/session"
	"trackserv/internal/storage"
)

type Status struct {
	service string
	start   time.Time

	sessions *session.Registry
	ingest   *server.Server
	store    *storage.Store
}

// NewStatus wires the status view. Registry and ingest may not be nil;
// store is optional (nil when persistence is disabled).
func NewStatus(service string, sessions *session.Registry, ingest *server.Server, store *storage.Store) *Status {
	return &Status{
		service:  service,
		start:    time.Now().UTC(),
		sessions: sessions,
		ingest:   ingest,
		store:    store,
	}
}

type StatusSnapshot struct {
	Service   string `json:"service"`
	NowUTC    string `json:"now_utc"`
	UptimeSec int64  `json:"uptime_sec"`

	Host *HostSnapshot `json:"host,omitempty"`

	Ingest   server.Snapshot `json:"ingest"`
	Sessions []session.Info  `json:"sessions"`

	StoredPositions *int64 `json:"stored_positions,omitempty"`
}

// HostSnapshot reports machine-level figures where the platform
// supports them.
type HostSnapshot struct {
	UptimeSec int64      `json:"uptime_sec"`
	Load      [3]float64 `json:"load"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}

	out := StatusSnapshot{
		Service:   s.service,
		NowUTC:    nowUTC.Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(s.start).Seconds()),
		Host:      snapshotHost(),
		Ingest:    s.ingest.Snapshot(),
		Sessions:  s.sessions.Snapshot(),
	}

	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if n, err := s.store.Count(ctx); err == nil {
			out.StoredPositions = &n
		}
	}
	return out
}
