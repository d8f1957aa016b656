package bluesound

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/mqtt"
)

type staticCounter DeviceCounts

func (c staticCounter) DeviceCounts() DeviceCounts { return DeviceCounts(c) }

func TestHealthReporter_DetermineStatus(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		counts     DeviceCounts
		wantStatus HealthStatus
		wantReason string
	}{
		{"no speakers", true, DeviceCounts{}, HealthHealthy, ""},
		{"all reachable", true, DeviceCounts{Total: 2, Available: 2}, HealthHealthy, ""},
		{"some unreachable", true, DeviceCounts{Total: 2, Available: 1, Unreachable: 1}, HealthHealthy, ""},
		{"all unreachable", true, DeviceCounts{Total: 2, Unreachable: 2}, HealthDegraded, "all speakers unreachable"},
		{"mqtt down", false, DeviceCounts{Total: 1, Available: 1}, HealthDegraded, "MQTT disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := newFakeMQTT()
			pub.setConnected(tt.connected)
			h := NewHealthReporter(HealthReporterConfig{
				BridgeID:  "bluesound-test",
				Publisher: pub,
				Counter:   staticCounter(tt.counts),
			})

			status, reason := h.Status()
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestHealthReporter_PublishNow(t *testing.T) {
	pub := newFakeMQTT()
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "bluesound-test",
		Version:   "1.2.3",
		Publisher: pub,
		Counter:   staticCounter{Total: 3, Available: 2, Unreachable: 1},
	})

	require.NoError(t, h.PublishNow())

	msgs := pub.messagesOn(mqtt.Topics{}.Health())
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].retained)

	var msg HealthMessage
	require.NoError(t, json.Unmarshal(msgs[0].payload, &msg))
	assert.Equal(t, "bluesound-test", msg.Bridge)
	assert.Equal(t, "1.2.3", msg.Version)
	assert.Equal(t, HealthHealthy, msg.Status)
	assert.Equal(t, DeviceCounts{Total: 3, Available: 2, Unreachable: 1}, msg.Devices)
}

func TestHealthReporter_StartAndStop(t *testing.T) {
	pub := newFakeMQTT()
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "bluesound-test",
		Interval:  10 * time.Millisecond,
		Publisher: pub,
	})

	h.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(pub.messagesOn(mqtt.Topics{}.Health())) >= 3
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()

	msgs := pub.messagesOn(mqtt.Topics{}.Health())
	var last HealthMessage
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].payload, &last))
	assert.Equal(t, HealthStopping, last.Status)
}

func TestHealthReporter_NilPublisher(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{BridgeID: "bluesound-test"})

	assert.NoError(t, h.PublishNow())
	status, reason := h.Status()
	assert.Equal(t, HealthDegraded, status)
	assert.Equal(t, "MQTT disconnected", reason)
}
