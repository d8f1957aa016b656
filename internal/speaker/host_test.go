package speaker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/nerrad567/gray-logic-bluesound/internal/bluos"
)

// mockClient is a testify mock of StatusClient.
type mockClient struct {
	mock.Mock
	fetches atomic.Int32
}

func (m *mockClient) FetchStatus(ctx context.Context, address string, port int) (bluos.Status, error) {
	m.fetches.Add(1)
	args := m.Called(ctx, address, port)
	return args.Get(0).(bluos.Status), args.Error(1)
}

func (m *mockClient) SendCommand(ctx context.Context, commandPath, address string, port int) error {
	args := m.Called(ctx, commandPath, address, port)
	return args.Error(0)
}

type firedTrigger struct {
	name   string
	tokens Tokens
}

// fakeHost records everything the driver writes.
type fakeHost struct {
	mu           sync.Mutex
	capabilities map[string]any
	store        map[string]string
	triggers     []firedTrigger
	available    bool
	reason       string
	availability []bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		capabilities: make(map[string]any),
		store:        make(map[string]string),
	}
}

func (h *fakeHost) Capability(name string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.capabilities[name]
	return v, ok
}

func (h *fakeHost) SetCapability(name string, value any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.capabilities[name] = value
	return nil
}

func (h *fakeHost) StoreValue(key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.store[key]
	return v, ok
}

func (h *fakeHost) SetStoreValue(key, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.store[key] = value
	return nil
}

func (h *fakeHost) Trigger(name string, tokens Tokens) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.triggers = append(h.triggers, firedTrigger{name: name, tokens: tokens})
	return nil
}

func (h *fakeHost) SetAvailable() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.available = true
	h.reason = ""
	h.availability = append(h.availability, true)
	return nil
}

func (h *fakeHost) SetUnavailable(reason string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.available = false
	h.reason = reason
	h.availability = append(h.availability, false)
	return nil
}

func (h *fakeHost) triggerNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.triggers))
	for _, t := range h.triggers {
		names = append(names, t.name)
	}
	return names
}

func (h *fakeHost) isAvailable() (bool, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.available, h.reason
}

func (h *fakeHost) storeValue(key string) string {
	v, _ := h.StoreValue(key)
	return v
}
