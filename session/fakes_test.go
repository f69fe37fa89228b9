package session

import (
	"context"
	"docsync-server/core"
	"docsync-server/delta"
	"docsync-server/stores/memory"
	"encoding/json"
	"sync"
	"testing"
)

type event struct {
	name string
	args []any
}

// hub delivers relays between fake peers joined to the same room.
type hub struct {
	mu    sync.Mutex
	peers []*fakePeer
}

func (h *hub) newPeer(id string) *fakePeer {
	p := &fakePeer{id: id, hub: h, rooms: map[string]bool{}}
	h.mu.Lock()
	h.peers = append(h.peers, p)
	h.mu.Unlock()
	return p
}

type fakePeer struct {
	id  string
	hub *hub

	mu     sync.Mutex
	events []event
	rooms  map[string]bool
	closed bool
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Emit(name string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event{name: name, args: args})
	return nil
}

func (p *fakePeer) Join(room string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms[room] = true
}

func (p *fakePeer) Relay(room, name string, args ...any) error {
	p.hub.mu.Lock()
	peers := append([]*fakePeer(nil), p.hub.peers...)
	p.hub.mu.Unlock()

	for _, other := range peers {
		if other == p || !other.inRoom(room) {
			continue
		}
		other.Emit(name, args...)
	}
	return nil
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *fakePeer) inRoom(room string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rooms[room]
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) received(name string) []event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []event
	for _, e := range p.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

// countingStore records blob store traffic on top of the in-memory store.
type countingStore struct {
	core.BlobStore

	mu      sync.Mutex
	gets    map[string]int
	puts    map[string]int
	getErr  error
	putErr  error
	getHook func()
}

func newCountingStore() *countingStore {
	return &countingStore{
		BlobStore: memory.NewStore(),
		gets:      map[string]int{},
		puts:      map[string]int{},
	}
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	s.gets[key]++
	err, hook := s.getErr, s.getHook
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return s.BlobStore.Get(ctx, key)
}

func (s *countingStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	s.puts[key]++
	err := s.putErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.BlobStore.Put(ctx, key, data, contentType)
}

func (s *countingStore) getCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[key]
}

func (s *countingStore) putCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[key]
}

func (s *countingStore) stored(t *testing.T, key string) string {
	t.Helper()
	data, err := s.BlobStore.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("stored(%q): %v", key, err)
	}
	return string(data)
}

func insert(s string) *delta.Delta {
	return delta.New(delta.Op{Insert: s})
}

// editPayload builds a delta event payload the way the transport decodes it.
func editPayload(t *testing.T, d *delta.Delta) map[string]any {
	t.Helper()
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	return map[string]any{"delta": decoded}
}

func marshal(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}
