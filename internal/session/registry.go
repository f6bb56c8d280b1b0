package session

import (
	"sort"
	"sync"
)

// RegistryConfig controls how device identities are admitted.
type RegistryConfig struct {
	// AutoRegister assigns a fresh device id to any identifier seen for
	// the first time. When false, only identifiers listed in Devices
	// resolve.
	AutoRegister bool

	// Devices preassigns identifiers. Always resolvable regardless of
	// AutoRegister.
	Devices []string
}

// Registry resolves connections to device sessions. The
// identifier-to-device-id binding is created atomically on first bind
// and is stable for the registry's lifetime; sessions are per
// connection and die with it.
type Registry struct {
	mu sync.Mutex

	autoRegister bool
	nextID       int64
	devices      map[string]int64
	conns        map[ConnID]*Session
}

func NewRegistry(cfg RegistryConfig) *Registry {
	r := &Registry{
		autoRegister: cfg.AutoRegister,
		nextID:       1,
		devices:      make(map[string]int64),
		conns:        make(map[ConnID]*Session),
	}
	for _, id := range cfg.Devices {
		if id == "" {
			continue
		}
		if _, ok := r.devices[id]; !ok {
			r.devices[id] = r.nextID
			r.nextID++
		}
	}
	return r
}

// Resolve looks up the session already bound to the connection.
func (r *Registry) Resolve(conn ConnID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.conns[conn]
	return s, ok
}

// Bind associates the connection with the device reporting uniqueID,
// creating the identity on first sight when auto-registration is on.
// Rebinding the same connection to the same identifier returns the
// existing session; a different identifier replaces it.
func (r *Registry) Bind(conn ConnID, uniqueID string) (*Session, bool) {
	if uniqueID == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	deviceID, ok := r.devices[uniqueID]
	if !ok {
		if !r.autoRegister {
			return nil, false
		}
		deviceID = r.nextID
		r.nextID++
		r.devices[uniqueID] = deviceID
	}

	if s, ok := r.conns[conn]; ok && s.uniqueID == uniqueID {
		return s, true
	}
	s := &Session{deviceID: deviceID, uniqueID: uniqueID}
	r.conns[conn] = s
	return s, true
}

// Release drops the connection's session. Safe to call for
// connections that never bound.
func (r *Registry) Release(conn ConnID) {
	r.mu.Lock()
	delete(r.conns, conn)
	r.mu.Unlock()
}

// Info is a read-only view of one bound session for status output.
type Info struct {
	DeviceID int64  `json:"device_id"`
	UniqueID string `json:"unique_id"`
	TimeZone string `json:"time_zone"`
}

// Snapshot lists bound sessions sorted by device id.
func (r *Registry) Snapshot() []Info {
	r.mu.Lock()
	out := make([]Info, 0, len(r.conns))
	for _, s := range r.conns {
		out = append(out, Info{
			DeviceID: s.deviceID,
			UniqueID: s.uniqueID,
			TimeZone: s.TimeZone().String(),
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DeviceID != out[j].DeviceID {
			return out[i].DeviceID < out[j].DeviceID
		}
		return out[i].UniqueID < out[j].UniqueID
	})
	return out
}
