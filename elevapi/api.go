// Package elevapi is the HTTP shell around the fleet. Handlers only decode,
// call the controller and encode; all behaviour lives in elevsystem.
package elevapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"liftsim/common"
	"liftsim/elevsystem"
	"liftsim/elevtracker"
)

// Controller is the part of *elevsystem.System the routes need.
type Controller interface {
	Health() string
	RegisterElevator(id common.ElevatorID) error
	SubmitRequest(ctx context.Context, req common.PassengerRequest) (elevsystem.Dispatch, error)
	FleetStatus() []common.LocationStatus
	ElevatorStatus(id common.ElevatorID) (elevtracker.Entry, error)
}

type statusResponse struct {
	Status string `json:"status"`
}

type dispatchResponse struct {
	Status     string            `json:"status"`
	ElevatorID common.ElevatorID `json:"elevator_id"`
	RequestID  string            `json:"request_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	ctl Controller
	log zerolog.Logger
}

// NewHandler returns the route table wrapped in request logging.
func NewHandler(ctl Controller, log zerolog.Logger) http.Handler {
	h := &handler{ctl: ctl, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", h.health)
	mux.HandleFunc("POST /elevator/register/{id}", h.register)
	mux.HandleFunc("POST /request", h.request)
	mux.HandleFunc("GET /elevator/status", h.fleetStatus)
	mux.HandleFunc("GET /elevator/status/{id}", h.elevatorStatus)

	return logRequests(mux, log)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: h.ctl.Health()})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	id, err := common.ParseElevatorID(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	switch err := h.ctl.RegisterElevator(id); {
	case err == nil:
		writeJSON(w, http.StatusCreated, struct{}{})
	case errors.Is(err, elevsystem.ErrElevatorExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, elevsystem.ErrNotStarted):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (h *handler) request(w http.ResponseWriter, r *http.Request) {
	var req common.PassengerRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid passenger request: " + err.Error()})
		return
	}

	d, err := h.ctl.SubmitRequest(r.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, elevsystem.ErrNoElevatorsAvailable):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if d.NoAction {
		writeJSON(w, http.StatusAccepted, statusResponse{Status: "No action required"})
		return
	}
	writeJSON(w, http.StatusOK, dispatchResponse{
		Status:     "Ok",
		ElevatorID: d.ElevatorID,
		RequestID:  d.RequestID.String(),
	})
}

func (h *handler) fleetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.FleetStatus())
}

func (h *handler) elevatorStatus(w http.ResponseWriter, r *http.Request) {
	id, err := common.ParseElevatorID(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	e, err := h.ctl.ElevatorStatus(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sr, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("code", sr.code).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
