package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-bluesound/internal/device"
)

// createDeviceRequest is the body of POST /devices.
type createDeviceRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port,omitempty"`
	Polling int    `json:"polling,omitempty"`
}

// updateDeviceRequest is the body of PUT /devices/{id}. Absent fields keep
// their current value.
type updateDeviceRequest struct {
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
	Port    *int    `json:"port,omitempty"`
	Polling *int    `json:"polling,omitempty"`
}

// capabilityRequest is the body of PUT /devices/{id}/capabilities/{capability}.
type capabilityRequest struct {
	Value any `json:"value"`
}

// handleListDevices returns every managed speaker with its observed state.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	statuses := s.bridge.Statuses()
	writeJSON(w, http.StatusOK, map[string]any{"devices": statuses, "count": len(statuses)})
}

// handleGetDevice returns one speaker.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	status, err := s.bridge.Status(chi.URLParam(r, "id"))
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleCreateDevice registers a speaker and starts polling it.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev := &device.Device{
		ID:      req.ID,
		Name:    req.Name,
		Address: req.Address,
		Port:    req.Port,
		Polling: req.Polling,
	}
	if err := s.bridge.Register(r.Context(), dev); err != nil {
		writeDeviceError(w, err)
		return
	}

	status, err := s.bridge.Status(dev.ID)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

// handleUpdateDevice changes a speaker's name or connection settings.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	current, err := s.bridge.Status(chi.URLParam(r, "id"))
	if err != nil {
		writeDeviceError(w, err)
		return
	}

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev := current.Device
	if req.Name != nil {
		dev.Name = *req.Name
	}
	if req.Address != nil {
		dev.Address = *req.Address
	}
	if req.Port != nil {
		dev.Port = *req.Port
	}
	if req.Polling != nil {
		dev.Polling = *req.Polling
	}

	if err := s.bridge.UpdateDevice(r.Context(), &dev); err != nil {
		writeDeviceError(w, err)
		return
	}

	updated, err := s.bridge.Status(dev.ID)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteDevice stops polling and removes a speaker.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.Unregister(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetCapability writes one capability. A rejected command returns 502.
func (s *Server) handleSetCapability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	capability := chi.URLParam(r, "capability")

	var req capabilityRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	if err := s.bridge.SetCapability(r.Context(), id, capability, req.Value); err != nil {
		writeDeviceError(w, err)
		return
	}

	status, err := s.bridge.Status(id)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
