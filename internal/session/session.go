// Package session tracks the binding between a transport connection
// and the device transmitting on it.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConnID identifies one transport connection. The ingest server
// allocates one per accepted connection and releases it on close.
type ConnID = uuid.UUID

// Session is the long-lived per-connection binding from a device's
// self-reported identifier to its internal numeric id. The attribute
// bag is last-writer-wins; the binding itself never changes once
// created.
type Session struct {
	deviceID int64
	uniqueID string

	mu       sync.RWMutex
	timeZone *time.Location
	attrs    map[string]string
}

func (s *Session) DeviceID() int64 { return s.deviceID }

func (s *Session) UniqueID() string { return s.uniqueID }

// TimeZone returns the zone used to interpret device-local timestamps.
// Defaults to UTC.
func (s *Session) TimeZone() *time.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.timeZone == nil {
		return time.UTC
	}
	return s.timeZone
}

func (s *Session) SetTimeZone(loc *time.Location) {
	s.mu.Lock()
	s.timeZone = loc
	s.mu.Unlock()
}

func (s *Session) Set(key, value string) {
	s.mu.Lock()
	if s.attrs == nil {
		s.attrs = make(map[string]string)
	}
	s.attrs[key] = value
	s.mu.Unlock()
}

func (s *Session) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.attrs[key]
	return v, ok
}
