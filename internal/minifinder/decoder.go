// Package minifinder decodes the line-oriented ASCII sentences emitted
// by MiniFinder-family GPS trackers.
//
// Sentences open with '!' followed by a one-character type marker and
// comma-separated fields. The decoder is stateless: compiled patterns
// are shared read-only, and identity resolution is delegated to an
// injected session resolver, so concurrent decodes for different
// connections are safe.
package minifinder

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"trackserv/internal/pattern"
	"trackserv/internal/position"
	"trackserv/internal/session"
)

const ProtocolName = "minifinder"

// Decode failure taxonomy. All are per-sentence and recoverable; the
// connection stays up.
var (
	// ErrUnknownType: the marker is outside the protocol's whitelist.
	ErrUnknownType = errors.New("unknown sentence type")
	// ErrInvalidSentence: the marker is known but the field structure
	// does not match its pattern.
	ErrInvalidSentence = errors.New("invalid sentence")
	// ErrUnsupportedSentence: recognized but intentionally not decoded.
	ErrUnsupportedSentence = errors.New("unsupported sentence")
)

// patternFix is the date/time/latitude/longitude block shared by every
// position-bearing sentence type.
var patternFix = pattern.New().
	Number("(d+)/(d+)/(d+),"). // date (dd/mm/yy)
	Number("(d+):(d+):(d+),"). // time (hh:mm:ss)
	Number("(-?d+.d+),").      // latitude
	Number("(-?d+.d+),").      // longitude
	Compile()

// patternState is the speed/course/flags/altitude/battery block.
var patternState = pattern.New().
	Number("(d+.?d*),").  // speed (km/h)
	Number("(d+.?d*),").  // course
	Hex("(x+),").         // flags
	Number("(-?d+.d+),"). // altitude (meters)
	Number("(d+),").      // battery (percent)
	Compile()

var (
	patternA = pattern.New().
		Literal("!A,").
		Group(patternFix).
		Any(). // unknown trailing fields
		Compile()

	patternC = pattern.New().
		Literal("!C,").
		Group(patternFix).
		Group(patternState).
		Any(). // unknown trailing fields
		Compile()

	// !B buffered, !D live; identical layout.
	patternBD = pattern.New().
		Text("![BD],").
		Group(patternFix).
		Group(patternState).
		Number("(d+),").    // satellites in use
		Number("(d+),").    // satellites in view
		Number("(d+.?d*)"). // hdop
		Compile()

	// !3,ok|error: result of the last configuration command.
	pattern3 = pattern.New().
		Literal("!3,").
		Text("(ok|error)").
		Compile()

	// !5,csq,sta: csq 0-31, sta "A" has GPS signal / "V" no signal.
	pattern5 = pattern.New().
		Literal("!5,").
		Number("(d+),").
		Text("([^;]+)").
		Compile()

	// !7,version,csq: firmware report.
	pattern7 = pattern.New().
		Literal("!7,").
		Text("([^,]+),").
		Number("(d+)").
		Compile()
)

// markers is the whitelist of recognized sentence types.
const markers = "ABCD3457"

// SessionResolver is the identity-resolution contract the decoder
// consumes. Both operations may fail; the decoder degrades by dropping
// the sentence.
type SessionResolver interface {
	Resolve(conn session.ConnID) (*session.Session, bool)
	Bind(conn session.ConnID, uniqueID string) (*session.Session, bool)
}

type Decoder struct {
	sessions SessionResolver
	log      *slog.Logger
}

func New(sessions SessionResolver, log *slog.Logger) *Decoder {
	if log == nil {
		log = slog.Default()
	}
	return &Decoder{sessions: sessions, log: log}
}

// Decode classifies one sentence and returns its telemetry record.
//
// A nil record with a nil error means the sentence was consumed
// without producing telemetry: registration frames, and frames
// arriving before any identity is bound (an expected startup
// condition, not reported). Reported drops return one of the package
// sentinel errors wrapped with the offending text.
func (d *Decoder) Decode(conn session.ConnID, sentence string) (*position.Position, error) {
	sentence = strings.TrimSpace(sentence)

	if strings.HasPrefix(sentence, "!1,") {
		id := sentence[3:]
		if i := strings.IndexByte(id, ','); i >= 0 {
			id = id[:i]
		}
		if _, ok := d.sessions.Bind(conn, id); !ok {
			d.log.Debug("registration rejected", "protocol", ProtocolName, "id", id)
		}
		return nil, nil
	}

	if len(sentence) < 3 || sentence[0] != '!' || sentence[2] != ',' ||
		!strings.ContainsRune(markers, rune(sentence[1])) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, sentence)
	}

	sess, ok := d.sessions.Resolve(conn)
	if !ok {
		return nil, nil
	}

	p := position.New(ProtocolName, sess.DeviceID())
	marker := sentence[1:2]
	p.Set(position.KeyType, position.Text(marker))

	switch marker {
	case "B", "D":
		f, ok := patternBD.Match(sentence)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSentence, sentence)
		}
		decodeFix(p, f, sess)
		decodeState(p, f)
		p.Set(position.KeySatellites, position.Int(f.NextInt(0)))
		p.Set(position.KeySatellitesVisible, position.Int(f.NextInt(0)))
		p.Set(position.KeyHDOP, position.Number(f.NextFloat(0)))
		return p, nil

	case "C":
		f, ok := patternC.Match(sentence)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSentence, sentence)
		}
		decodeFix(p, f, sess)
		decodeState(p, f)
		return p, nil

	case "A":
		f, ok := patternA.Match(sentence)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSentence, sentence)
		}
		decodeFix(p, f, sess)
		return p, nil

	case "3":
		f, ok := pattern3.Match(sentence)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSentence, sentence)
		}
		p.Set(position.KeyStatus, position.Text(f.Next()))
		return p, nil

	case "4":
		// !4,f1..f9 check-status report; layout undocumented.
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSentence, sentence)

	case "5":
		f, ok := pattern5.Match(sentence)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSentence, sentence)
		}
		p.Set(position.KeyRSSI, position.Int(f.NextInt(0)))
		p.Set(position.KeyGPS, position.Text(f.Next()))
		return p, nil

	case "7":
		f, ok := pattern7.Match(sentence)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSentence, sentence)
		}
		p.Set(position.KeyVersionFW, position.Text(f.Next()))
		p.Set(position.KeyRSSI, position.Int(f.NextInt(0)))
		return p, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrInvalidSentence, sentence)
}

func decodeFix(p *position.Position, f *pattern.Fields, sess *session.Session) {
	p.Time = f.NextDateTime(pattern.DateFormatDMYHMS, sess.TimeZone())
	p.Latitude = f.NextFloat(0)
	p.Longitude = f.NextFloat(0)
}

func decodeState(p *position.Position, f *pattern.Fields) {
	p.Speed = knotsFromKph(f.NextFloat(0))

	p.Course = f.NextFloat(0)
	if p.Course > 360 {
		p.Course = 0
	}

	decodeFlags(p, f.NextHex(0))

	p.Altitude = f.NextFloat(0)
	p.Set(position.KeyBatteryLevel, position.Int(f.NextInt(0)))
}

func knotsFromKph(kph float64) float64 {
	return kph / 1.852
}
