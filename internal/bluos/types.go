package bluos

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultPort is the BluOS control API port.
const DefaultPort = 11000

// NotAvailable stands in for artist, track or album when the player reports none.
const NotAvailable = "Not available"

// PlayState is the transport state reported in <state>.
type PlayState string

// Transport states reported by BluOS players.
const (
	StatePlay       PlayState = "play"
	StateStream     PlayState = "stream"
	StatePause      PlayState = "pause"
	StateStop       PlayState = "stop"
	StateConnecting PlayState = "connecting"
)

// IsPlaying reports whether audio is actively being rendered.
func (s PlayState) IsPlaying() bool {
	return s == StatePlay || s == StateStream
}

// IsActive reports whether the player is neither stopped nor paused.
func (s PlayState) IsActive() bool {
	return s != StateStop && s != StatePause
}

// Command paths accepted by SendCommand.
const (
	CommandPlay  = "Play"
	CommandPause = "Pause"
	CommandBack  = "Back"
	CommandSkip  = "Skip"
)

// VolumeCommand returns the command path that sets an absolute volume level.
func VolumeCommand(level int) (string, error) {
	if level < 0 || level > 100 {
		return "", fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	return "Volume?level=" + strconv.Itoa(level), nil
}

// Status is one parsed /Status snapshot.
type Status struct {
	State   PlayState `json:"state"`
	Volume  int       `json:"volume"`
	Shuffle bool      `json:"shuffle"`
	// Repeat is the BluOS repeat mode: 0 queue, 1 track, 2 off.
	Repeat  int    `json:"repeat"`
	Artist  string `json:"artist"`
	Track   string `json:"track"`
	Album   string `json:"album"`
	Service string `json:"service"`
}

// Identity is the subset of /SyncStatus used when adding a player.
type Identity struct {
	Name      string `json:"name"`
	ModelName string `json:"model_name"`
	Brand     string `json:"brand"`
	MAC       string `json:"mac"`
}

// statusXML mirrors the elements of the /Status document the bridge reads.
type statusXML struct {
	XMLName     xml.Name `xml:"status"`
	State       string   `xml:"state"`
	Volume      string   `xml:"volume"`
	Shuffle     string   `xml:"shuffle"`
	Repeat      string   `xml:"repeat"`
	Artist      string   `xml:"artist"`
	Album       string   `xml:"album"`
	Name        string   `xml:"name"`
	Title1      string   `xml:"title1"`
	Title2      string   `xml:"title2"`
	Title3      string   `xml:"title3"`
	Service     string   `xml:"service"`
	ServiceName string   `xml:"serviceName"`
}

type syncStatusXML struct {
	XMLName   xml.Name `xml:"SyncStatus"`
	Name      string   `xml:"name,attr"`
	ModelName string   `xml:"modelName,attr"`
	Brand     string   `xml:"brand,attr"`
	MAC       string   `xml:"mac,attr"`
}

// parseStatus decodes a /Status body. Radio streams often leave
// artist/name/album empty and carry metadata in title1..3 instead.
func parseStatus(body []byte) (Status, error) {
	var raw statusXML
	if err := xml.Unmarshal(body, &raw); err != nil {
		return Status{}, fmt.Errorf("decoding status: %w", err)
	}

	state := strings.TrimSpace(raw.State)
	if state == "" {
		return Status{}, errors.New("status has no state")
	}

	volume, err := strconv.Atoi(strings.TrimSpace(raw.Volume))
	if err != nil {
		return Status{}, fmt.Errorf("parsing volume %q: %w", raw.Volume, err)
	}

	repeat := 0
	if v := strings.TrimSpace(raw.Repeat); v != "" {
		if repeat, err = strconv.Atoi(v); err != nil {
			return Status{}, fmt.Errorf("parsing repeat %q: %w", raw.Repeat, err)
		}
	}

	service := raw.ServiceName
	if service == "" {
		service = raw.Service
	}

	return Status{
		State:   PlayState(state),
		Volume:  volume,
		Shuffle: strings.TrimSpace(raw.Shuffle) == "1",
		Repeat:  repeat,
		Artist:  firstNonEmpty(raw.Artist, raw.Title2),
		Track:   firstNonEmpty(raw.Name, raw.Title1),
		Album:   firstNonEmpty(raw.Album, raw.Title3),
		Service: service,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return NotAvailable
}

func parseSyncStatus(body []byte) (Identity, error) {
	var raw syncStatusXML
	if err := xml.Unmarshal(body, &raw); err != nil {
		return Identity{}, fmt.Errorf("%w: decoding sync status: %w", ErrFetchFailed, err)
	}
	return Identity{
		Name:      raw.Name,
		ModelName: raw.ModelName,
		Brand:     raw.Brand,
		MAC:       raw.MAC,
	}, nil
}
