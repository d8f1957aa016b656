package device

import (
	"time"

	"github.com/nerrad567/gray-logic-bluesound/internal/bluos"
	"github.com/nerrad567/gray-logic-bluesound/internal/speaker"
)

// Setting defaults and limits.
const (
	DefaultPort    = bluos.DefaultPort
	DefaultPolling = 5

	// MinPolling is the shortest poll interval in seconds.
	MinPolling = 1
)

// Device is one registered speaker.
type Device struct {
	// ID is a stable identifier, generated from the name when not supplied.
	ID   string `json:"id"`
	Name string `json:"name"`

	// Address is the speaker's IP address or hostname.
	Address string `json:"address"`
	Port    int    `json:"port"`

	// Polling is the poll interval in seconds.
	Polling int `json:"polling"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyDefaults fills the port and poll interval when unset.
func (d *Device) ApplyDefaults() {
	if d.Port == 0 {
		d.Port = DefaultPort
	}
	if d.Polling == 0 {
		d.Polling = DefaultPolling
	}
}

// Settings returns the driver connection settings.
func (d Device) Settings() speaker.Settings {
	return speaker.Settings{
		Address: d.Address,
		Port:    d.Port,
		Polling: time.Duration(d.Polling) * time.Second,
	}
}
