package www

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"steptracker/motion"
)

type appendSamplesRequest struct {
	Samples []motion.Sample `json:"samples"`
}

func parseSampleMillis(r *http.Request, name string) (time.Time, bool) {
	ms, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (h *Handlers) apiSamplesTotal(w http.ResponseWriter, r *http.Request) {
	samples := h.engine.Samples()
	if samples == nil {
		writeError(w, http.StatusServiceUnavailable, "no sample store configured")
		return
	}
	from, ok := parseSampleMillis(r, "from")
	if !ok {
		writeError(w, http.StatusBadRequest, "from must be milliseconds since the epoch")
		return
	}
	to, ok := parseSampleMillis(r, "to")
	if !ok {
		writeError(w, http.StatusBadRequest, "to must be milliseconds since the epoch")
		return
	}

	total, err := samples.SumSteps(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]int{"steps": total})
}

func (h *Handlers) apiAppendSamples(w http.ResponseWriter, r *http.Request) {
	samples := h.engine.Samples()
	if samples == nil {
		writeError(w, http.StatusServiceUnavailable, "no sample store configured")
		return
	}

	var req appendSamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "no samples")
		return
	}
	for _, s := range req.Samples {
		if s.Steps < 0 || s.RecordedAt.IsZero() {
			writeError(w, http.StatusBadRequest, "samples need a recorded_at and a non-negative step count")
			return
		}
	}

	if err := samples.AppendSamples(r.Context(), req.Samples); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{"status": "ok", "count": len(req.Samples)})
}

func (h *Handlers) apiDeleteSamples(w http.ResponseWriter, r *http.Request) {
	samples := h.engine.Samples()
	if samples == nil {
		writeError(w, http.StatusServiceUnavailable, "no sample store configured")
		return
	}
	n, err := samples.DeleteStepSamples(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]int64{"deleted": n})
}
