// Package publish streams decoded telemetry records to NATS as JSON,
// one subject per device.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"trackserv/internal/position"
)

type Config struct {
	URL string

	// SubjectPrefix forms subjects as "<prefix>.<deviceID>".
	SubjectPrefix string

	// Name identifies the client to the NATS server.
	Name string

	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
}

type Publisher struct {
	conn   *nats.Conn
	prefix string
	log    *slog.Logger
}

// Connect dials the NATS server and keeps reconnecting for the
// publisher's lifetime.
func Connect(cfg Config, log *slog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "trackserv.positions"
	}
	if cfg.Name == "" {
		cfg.Name = "trackserv"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", cfg.URL, err)
	}

	log.Info("nats connected", "url", conn.ConnectedUrl(), "subject_prefix", cfg.SubjectPrefix)
	return &Publisher{conn: conn, prefix: cfg.SubjectPrefix, log: log}, nil
}

// HandlePosition implements the ingest server's sink contract.
func (p *Publisher) HandlePosition(_ context.Context, pos *position.Position) error {
	payload, err := encode(pos)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s.%d", p.prefix, pos.DeviceID)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	// Flush what we can before dropping the connection.
	_ = p.conn.Drain()
}

// wirePosition is the published JSON shape. Attribute keys are merged
// flat under "attributes" in decode order.
type wirePosition struct {
	DeviceID   int64           `json:"device_id"`
	Protocol   string          `json:"protocol"`
	TimeUTC    string          `json:"time_utc"`
	Valid      bool            `json:"valid"`
	Latitude   float64         `json:"latitude"`
	Longitude  float64         `json:"longitude"`
	AltitudeM  float64         `json:"altitude_m"`
	SpeedKt    float64         `json:"speed_kt"`
	CourseDeg  float64         `json:"course_deg"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
}

func encode(pos *position.Position) ([]byte, error) {
	out := wirePosition{
		DeviceID:  pos.DeviceID,
		Protocol:  pos.Protocol,
		TimeUTC:   pos.Time.UTC().Format(time.RFC3339),
		Valid:     pos.Valid,
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		AltitudeM: pos.Altitude,
		SpeedKt:   pos.Speed,
		CourseDeg: pos.Course,
	}
	if pos.Attributes.Len() > 0 {
		b, err := json.Marshal(pos.Attributes)
		if err != nil {
			return nil, fmt.Errorf("marshaling attributes: %w", err)
		}
		out.Attributes = b
	}
	return json.Marshal(out)
}
