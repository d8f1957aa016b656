package bluesound

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-bluesound/internal/speaker"
)

// capabilityKeyPrefix namespaces capability values inside the device store.
const capabilityKeyPrefix = "capability."

// deviceHost is the host platform for one driver. It satisfies speaker.Host.
type deviceHost struct {
	id     string
	bridge *Bridge

	mu     sync.RWMutex
	caps   map[string]any
	store  map[string]string
	reason string
}

// newDeviceHost loads persisted values for the device.
func (b *Bridge) newDeviceHost(ctx context.Context, id string) *deviceHost {
	h := &deviceHost{
		id:     id,
		bridge: b,
		caps:   make(map[string]any),
		store:  make(map[string]string),
	}
	if b.store == nil {
		return h
	}

	values, err := b.store.Load(ctx, id)
	if err != nil {
		b.logError("loading device store", err)
		return h
	}
	for key, value := range values {
		name, isCap := strings.CutPrefix(key, capabilityKeyPrefix)
		if !isCap {
			h.store[key] = value
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			b.logDebug("skipping unreadable capability", "device_id", id, "capability", name)
			continue
		}
		h.caps[name] = v
	}
	return h
}

func (h *deviceHost) Capability(name string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.caps[name]
	return v, ok
}

func (h *deviceHost) SetCapability(name string, value any) error {
	h.mu.Lock()
	h.caps[name] = value
	h.mu.Unlock()

	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return h.bridge.persist(h.id, capabilityKeyPrefix+name, string(encoded))
}

func (h *deviceHost) StoreValue(key string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.store[key]
	return v, ok
}

func (h *deviceHost) SetStoreValue(key, value string) error {
	h.mu.Lock()
	h.store[key] = value
	h.mu.Unlock()

	return h.bridge.persist(h.id, key, value)
}

func (h *deviceHost) Trigger(name string, tokens speaker.Tokens) error {
	return h.bridge.publishEvent(h.id, name, tokens)
}

func (h *deviceHost) SetAvailable() error {
	h.mu.Lock()
	h.reason = ""
	h.mu.Unlock()
	return nil
}

func (h *deviceHost) SetUnavailable(reason string) error {
	h.mu.Lock()
	h.reason = reason
	h.mu.Unlock()

	h.bridge.logInfo("speaker unavailable", "device_id", h.id, "reason", reason)
	return nil
}

// unavailableReason returns the reason given with the last SetUnavailable.
func (h *deviceHost) unavailableReason() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.reason
}
