package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/actuators"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/types"
)

// Handlers contains all HTTP handlers for the command surface
type Handlers struct {
	controller *Controller
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{controller: ctrl}
}

// StatusResponse is the GET /status payload.
type StatusResponse struct {
	LoopState  string                 `json:"loop_state"`
	Automation bool                   `json:"automation"`
	Mode       string                 `json:"mode"`
	Actuators  types.ActuatorStateSet `json:"actuators"`
	Decisions  int                    `json:"decisions_retained"`
	Latest     *types.Decision        `json:"latest_decision,omitempty"`
}

// GetStatus reports the loop state, arbitration mode and actuator states.
func (h *Handlers) GetStatus(w http.ResponseWriter, req *http.Request) {
	c := h.controller

	resp := StatusResponse{
		LoopState:  c.loop.State().String(),
		Automation: c.loop.AutomationEnabled(),
		Mode:       c.coordinator.Mode().String(),
		Actuators:  c.coordinator.State(),
		Decisions:  c.auditLog.Len(),
	}
	if latest, ok := c.auditLog.Latest(); ok {
		resp.Latest = &latest
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetDecisions returns the retained decision history, newest first.
func (h *Handlers) GetDecisions(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.auditLog.Snapshot())
}

// SetAutomation enables or disables the automation loop. Disabling also
// hands the coordinator to manual control; enabling takes it back.
func (h *Handlers) SetAutomation(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	c := h.controller
	c.loop.SetAutomation(body.Enabled)
	if body.Enabled {
		c.coordinator.SetMode(actuators.Auto)
	} else {
		c.coordinator.SetMode(actuators.Manual)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"enabled": body.Enabled})
}

// SetPhase pins the cultivation phase.
func (h *Handlers) SetPhase(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Phase string `json:"phase"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	phase, err := types.ParsePhase(body.Phase)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.controller.loop.SetPhase(phase)
	writeJSON(w, http.StatusOK, map[string]string{"phase": phase.String()})
}

// ClearPhase returns phase control to the sensor feed.
func (h *Handlers) ClearPhase(w http.ResponseWriter, req *http.Request) {
	h.controller.loop.ClearPhaseOverride()
	w.WriteHeader(http.StatusNoContent)
}

// SetActuator is the manual-override path. It is rejected while automation
// holds the coordinator; callers must disable automation first.
func (h *Handlers) SetActuator(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["name"]

	var actuator types.Actuator
	for _, a := range types.Actuators {
		if string(a) == name {
			actuator = a
			break
		}
	}
	if actuator == "" {
		writeError(w, http.StatusNotFound, "unknown actuator "+name)
		return
	}

	var body struct {
		On bool `json:"on"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.controller.coordinator.SetActuator(actuator, body.On); err != nil {
		if errors.Is(err, actuators.ErrAutomationActive) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.controller.coordinator.State())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
