//go:build integration

package mqtt

import (
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/config"
)

// Requires a broker at 127.0.0.1:1883.
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker:    config.MQTTBrokerConfig{Host: "127.0.0.1", Port: 1883, ClientID: clientID},
		QoS:       1,
		Reconnect: config.MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 5},
	}
}

func TestIntegration_CommandRoundtrip(t *testing.T) {
	client, err := Connect(integrationConfig("bluesound-int-roundtrip"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	err = client.Subscribe(Topics{}.AllCommands(), 1, func(topic string, _ []byte) error {
		received <- DeviceIDFromTopic(topic)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if client.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", client.SubscriptionCount())
	}

	if err := client.Publish(Topics{}.Command("kitchen"), []byte(`{"command":"speaker_next"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case id := <-received:
		if id != "kitchen" {
			t.Errorf("device id = %q, want kitchen", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command not received")
	}

	if err := client.Unsubscribe(Topics{}.AllCommands()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}
