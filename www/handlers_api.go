package www

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"

	"steptracker/bridge"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeCallError maps a failed bridge call to a response. Rejections keep
// their code and message.
func writeCallError(w http.ResponseWriter, err error) {
	var be *bridge.Error
	if !errors.As(err, &be) {
		// Client went away before the call settled.
		log.Printf("www: bridge call abandoned: %v", err)
		return
	}

	status := http.StatusInternalServerError
	switch be.Code {
	case bridge.CodeNotAvailable:
		status = http.StatusConflict
	case bridge.CodeStepCountError:
		status = http.StatusBadGateway
	case bridge.CodeBridgeClosed:
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": be.Code, "error": be.Message})
}

func (h *Handlers) apiAvailable(w http.ResponseWriter, r *http.Request) {
	call := newPendingCall()
	h.engine.Bridge().IsAvailable(call)
	v, err := call.wait(r.Context())
	if err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"available": v})
}

func (h *Handlers) apiGetStepCount(w http.ResponseWriter, r *http.Request) {
	start, ok := parseMillis(r.URL.Query().Get("start"))
	if !ok {
		writeError(w, http.StatusBadRequest, "start must be milliseconds since the epoch")
		return
	}
	end, ok := parseMillis(r.URL.Query().Get("end"))
	if !ok {
		writeError(w, http.StatusBadRequest, "end must be milliseconds since the epoch")
		return
	}

	call := newPendingCall()
	h.engine.Bridge().GetStepCount(start, end, call)
	v, err := call.wait(r.Context())
	if err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"steps": v})
}

func (h *Handlers) apiStartTracking(w http.ResponseWriter, r *http.Request) {
	call := newPendingCall()
	h.engine.Bridge().StartStepTracking(call)
	if _, err := call.wait(r.Context()); err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiStopTracking(w http.ResponseWriter, r *http.Request) {
	call := newPendingCall()
	h.engine.Bridge().StopStepTracking(call)
	if _, err := call.wait(r.Context()); err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiTrackingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"tracking": h.engine.Tracking(),
		"source":   h.engine.Source(),
	})
}

// parseMillis accepts a finite, possibly fractional, millisecond timestamp.
func parseMillis(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
