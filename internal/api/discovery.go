package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-bluesound/internal/discovery"
)

// discoveredSpeaker is one scan result, marked when already registered.
type discoveredSpeaker struct {
	discovery.Candidate
	DeviceID string `json:"device_id,omitempty"`
}

// handleDiscovery runs one mDNS scan and returns the players found.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeUnavailable(w, "discovery not enabled")
		return
	}

	found, err := s.scanner.Scan(r.Context())
	if err != nil {
		s.logger.Warn("discovery scan failed", "error", err)
		writeUnavailable(w, "discovery scan failed")
		return
	}

	registered := make(map[string]string)
	for _, st := range s.bridge.Statuses() {
		c := discovery.Candidate{Address: st.Device.Address, Port: st.Device.Port}
		registered[c.Endpoint()] = st.Device.ID
	}

	out := make([]discoveredSpeaker, 0, len(found))
	for _, c := range found {
		out = append(out, discoveredSpeaker{Candidate: c, DeviceID: registered[c.Endpoint()]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"speakers": out, "count": len(out)})
}
