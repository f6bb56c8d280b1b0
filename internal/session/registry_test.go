package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBindCreatesIdentityOnce(t *testing.T) {
	r := NewRegistry(RegistryConfig{AutoRegister: true})

	c1 := uuid.New()
	c2 := uuid.New()

	s1, ok := r.Bind(c1, "ABC123")
	if !ok {
		t.Fatalf("bind failed")
	}
	s2, ok := r.Bind(c2, "ABC123")
	if !ok {
		t.Fatalf("second bind failed")
	}

	if s1.DeviceID() != s2.DeviceID() {
		t.Errorf("same identifier must map to same device id: %d vs %d", s1.DeviceID(), s2.DeviceID())
	}

	s3, ok := r.Bind(uuid.New(), "XYZ789")
	if !ok {
		t.Fatalf("bind failed")
	}
	if s3.DeviceID() == s1.DeviceID() {
		t.Errorf("distinct identifiers must get distinct device ids")
	}
}

func TestResolveRequiresBind(t *testing.T) {
	r := NewRegistry(RegistryConfig{AutoRegister: true})
	conn := uuid.New()

	if _, ok := r.Resolve(conn); ok {
		t.Fatalf("unbound connection must not resolve")
	}

	if _, ok := r.Bind(conn, "ABC123"); !ok {
		t.Fatalf("bind failed")
	}
	s, ok := r.Resolve(conn)
	if !ok {
		t.Fatalf("bound connection must resolve")
	}
	if s.UniqueID() != "ABC123" {
		t.Errorf("unique id: got %q", s.UniqueID())
	}

	r.Release(conn)
	if _, ok := r.Resolve(conn); ok {
		t.Errorf("released connection must not resolve")
	}
}

func TestBindRejectsUnknownWithoutAutoRegister(t *testing.T) {
	r := NewRegistry(RegistryConfig{Devices: []string{"KNOWN1"}})

	if _, ok := r.Bind(uuid.New(), "STRANGER"); ok {
		t.Errorf("unknown identifier must not bind")
	}
	s, ok := r.Bind(uuid.New(), "KNOWN1")
	if !ok {
		t.Fatalf("preassigned identifier must bind")
	}
	if s.DeviceID() != 1 {
		t.Errorf("device id: got %d", s.DeviceID())
	}
}

func TestBindEmptyIdentifier(t *testing.T) {
	r := NewRegistry(RegistryConfig{AutoRegister: true})
	if _, ok := r.Bind(uuid.New(), ""); ok {
		t.Errorf("empty identifier must not bind")
	}
}

func TestConcurrentBindSameIdentifier(t *testing.T) {
	r := NewRegistry(RegistryConfig{AutoRegister: true})

	const n = 32
	ids := make([]int64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			s, ok := r.Bind(uuid.New(), "RACE01")
			if !ok {
				t.Errorf("bind failed")
				return
			}
			ids[i] = s.DeviceID()
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("create-if-absent not atomic: ids %d and %d differ", ids[0], ids[i])
		}
	}
}

func TestSessionTimeZoneAndAttributes(t *testing.T) {
	r := NewRegistry(RegistryConfig{AutoRegister: true})
	s, ok := r.Bind(uuid.New(), "TZ1")
	if !ok {
		t.Fatalf("bind failed")
	}

	if s.TimeZone() != time.UTC {
		t.Errorf("default zone must be UTC")
	}
	loc := time.FixedZone("UTC+10", 10*60*60)
	s.SetTimeZone(loc)
	if s.TimeZone() != loc {
		t.Errorf("zone not applied")
	}

	s.Set("firmware", "V07")
	if v, ok := s.Get("firmware"); !ok || v != "V07" {
		t.Errorf("attribute: got %q ok=%v", v, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Errorf("missing attribute must not resolve")
	}
}

func TestSnapshotSorted(t *testing.T) {
	r := NewRegistry(RegistryConfig{AutoRegister: true})
	r.Bind(uuid.New(), "BBB")
	r.Bind(uuid.New(), "AAA")

	infos := r.Snapshot()
	if len(infos) != 2 {
		t.Fatalf("got %d sessions", len(infos))
	}
	if infos[0].DeviceID > infos[1].DeviceID {
		t.Errorf("snapshot not sorted: %+v", infos)
	}
}
