package pattern

import (
	"fmt"
	"strconv"
	"time"
)

// Fields is a sequential cursor over the capture groups of a matched
// sentence. Each accessor consumes exactly one group (NextDateTime
// consumes six); calls must follow the pattern's declaration order.
// Consuming past the last group is a programming error and panics.
//
// Absent or empty optional groups yield the accessor's default. A
// token that the pattern matched is by construction well formed for
// its accessor, so parse failures cannot occur here.
type Fields struct {
	groups []string
	next   int
}

// Next returns the raw text of the next capture group.
func (f *Fields) Next() string {
	if f.next >= len(f.groups) {
		panic(fmt.Sprintf("pattern: group %d consumed but only %d declared", f.next+1, len(f.groups)))
	}
	g := f.groups[f.next]
	f.next++
	return g
}

// Remaining reports how many groups have not been consumed yet.
func (f *Fields) Remaining() int {
	return len(f.groups) - f.next
}

func (f *Fields) NextInt(def int) int {
	g := f.Next()
	if g == "" {
		return def
	}
	v, err := strconv.Atoi(g)
	if err != nil {
		return def
	}
	return v
}

func (f *Fields) NextFloat(def float64) float64 {
	g := f.Next()
	if g == "" {
		return def
	}
	v, err := strconv.ParseFloat(g, 64)
	if err != nil {
		return def
	}
	return v
}

func (f *Fields) NextHex(def uint64) uint64 {
	g := f.Next()
	if g == "" {
		return def
	}
	v, err := strconv.ParseUint(g, 16, 64)
	if err != nil {
		return def
	}
	return v
}

// DateFormat selects the component order a pattern declares its
// date/time groups in.
type DateFormat int

const (
	// DateFormatDMYHMS: day, month, two-digit year, hour, minute, second.
	DateFormatDMYHMS DateFormat = iota
	// DateFormatYMDHMS: two-digit year, month, day, hour, minute, second.
	DateFormatYMDHMS
)

// NextDateTime consumes six groups and combines them into a timestamp
// in loc. Two-digit years pivot at 2000.
func (f *Fields) NextDateTime(format DateFormat, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}

	var day, month, year int
	switch format {
	case DateFormatYMDHMS:
		year = f.NextInt(0)
		month = f.NextInt(0)
		day = f.NextInt(0)
	default:
		day = f.NextInt(0)
		month = f.NextInt(0)
		year = f.NextInt(0)
	}
	if year < 100 {
		year += 2000
	}

	hour := f.NextInt(0)
	minute := f.NextInt(0)
	second := f.NextInt(0)

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
}
