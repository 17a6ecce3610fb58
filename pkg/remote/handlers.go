package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/gwillem/oscillator/pkg/control"
	"github.com/gwillem/oscillator/pkg/motion"
)

type Handler struct {
	ctrl     Controller
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(ctrl Controller, logger *slog.Logger) *Handler {
	return &Handler{
		ctrl: ctrl,
		log:  logger,
		// The zero CheckOrigin refuses pages served from another host.
		upgrader: websocket.Upgrader{},
	}
}

// cycleCount is a cycle goal given as a number or as "inf".
type cycleCount motion.Goal

func (c *cycleCount) UnmarshalJSON(b []byte) error {
	g, err := motion.ParseGoal(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*c = cycleCount(g)
	return nil
}

func goalOr(c *cycleCount, def motion.Goal) motion.Goal {
	if c == nil {
		return def
	}
	return motion.Goal(*c)
}

type oscillateRequest struct {
	X1     *int        `json:"x1"`
	X2     *int        `json:"x2"`
	Cycles *cycleCount `json:"cycles"`
}

type rotateRequest struct {
	Speed  *int        `json:"speed"`
	Cycles *cycleCount `json:"cycles"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

// Oscillate handles POST /api/oscillate. Omitted fields use the session
// settings.
func (h *Handler) Oscillate(w http.ResponseWriter, r *http.Request) {
	var req oscillateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s := h.ctrl.Settings()
	cmd := control.StartOscillation{X1: s.X1, X2: s.X2, Cycles: goalOr(req.Cycles, s.Cycles)}
	if req.X1 != nil {
		cmd.X1 = *req.X1
	}
	if req.X2 != nil {
		cmd.X2 = *req.X2
	}
	h.submit(w, cmd)
}

// Rotate handles POST /api/rotate
func (h *Handler) Rotate(w http.ResponseWriter, r *http.Request) {
	var req rotateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s := h.ctrl.Settings()
	cmd := control.StartContinuous{Speed: s.RotationSpeed, Cycles: goalOr(req.Cycles, s.Cycles)}
	if req.Speed != nil {
		cmd.Speed = *req.Speed
	}
	h.submit(w, cmd)
}

// Manual handles POST /api/manual
func (h *Handler) Manual(w http.ResponseWriter, r *http.Request) {
	h.submit(w, control.StartManual{})
}

// Stop handles POST /api/stop
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	h.submit(w, control.Stop{})
}

// Pause handles POST /api/pause
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.submit(w, control.TogglePause{})
}

// Press handles POST /api/input/{action}. The action stays held for the
// controller's key hold window; clients repeat the request to keep it held.
func (h *Handler) Press(w http.ResponseWriter, r *http.Request) {
	a, ok := motion.ParseAction(chi.URLParam(r, "action"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	h.ctrl.Press(a)
	w.WriteHeader(http.StatusNoContent)
}

// Release handles DELETE /api/input/{action}
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	a, ok := motion.ParseAction(chi.URLParam(r, "action"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	h.ctrl.Release(a)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, cmd control.Command) {
	err := h.ctrl.Submit(cmd)
	var ce *motion.ConfigError
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, h.ctrl.Snapshot())
	case errors.As(err, &ce):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, control.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("submit failed", "command", fmt.Sprintf("%T", cmd), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON decodes the request body into v. An empty body leaves v as is.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
