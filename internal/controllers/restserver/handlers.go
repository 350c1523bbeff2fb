package restserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/chrissnell/inform/internal/constants"
	"github.com/chrissnell/inform/internal/log"
	"github.com/chrissnell/inform/internal/storage"
	"github.com/chrissnell/inform/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, data any) {
	if err := h.formatter.WriteResponse(w, req, data, nil); err != nil {
		h.controller.logger.Errorw("could not write response", "path", req.URL.Path, "error", err)
	}
}

// fail maps store errors onto HTTP statuses.
func (h *Handlers) fail(w http.ResponseWriter, req *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	if errors.Is(err, storage.ErrNotFound) {
		status, msg = http.StatusNotFound, err.Error()
	} else {
		h.controller.logger.Errorw("request failed", "path", req.URL.Path, "error", err)
	}
	h.formatter.WriteError(w, req, status, msg)
}

// runID parses the {id} route variable, writing a 400 when it is invalid.
func (h *Handlers) runID(w http.ResponseWriter, req *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "invalid run id")
		return uuid.Nil, false
	}
	return id, true
}

// ListRuns handles GET /runs.
func (h *Handlers) ListRuns(w http.ResponseWriter, req *http.Request) {
	runs, err := h.controller.store.ListRuns(req.Context())
	if err != nil {
		h.fail(w, req, err)
		return
	}
	out := make([]RunSummary, len(runs))
	for i, r := range runs {
		out[i] = runSummary(r)
	}
	h.write(w, req, out)
}

// GetRun handles GET /runs/{id}.
func (h *Handlers) GetRun(w http.ResponseWriter, req *http.Request) {
	id, ok := h.runID(w, req)
	if !ok {
		return
	}
	run, err := h.controller.store.GetRun(req.Context(), id)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	blocks, err := h.controller.store.Blocks(req.Context(), id, "")
	if err != nil {
		h.fail(w, req, err)
		return
	}
	counts := map[string]int{
		string(storage.KindFlight):  0,
		string(storage.KindCloud):   0,
		string(storage.KindSegment): 0,
	}
	for _, b := range blocks {
		counts[string(b.Kind)]++
	}
	h.write(w, req, RunDetail{RunSummary: runSummary(*run), BlockCounts: counts})
}

// GetBlocks handles GET /runs/{id}/blocks, optionally filtered by
// ?kind=flight|cloud|segment.
func (h *Handlers) GetBlocks(w http.ResponseWriter, req *http.Request) {
	id, ok := h.runID(w, req)
	if !ok {
		return
	}
	kind := storage.BlockKind(req.URL.Query().Get("kind"))
	switch kind {
	case "", storage.KindFlight, storage.KindCloud, storage.KindSegment:
	default:
		h.formatter.WriteError(w, req, http.StatusBadRequest, "kind must be flight, cloud or segment")
		return
	}
	recs, err := h.controller.store.Blocks(req.Context(), id, kind)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	out := make([]Block, len(recs))
	for i, b := range recs {
		out[i] = block(b)
	}
	h.write(w, req, out)
}

// GetCells handles GET /runs/{id}/cells.
func (h *Handlers) GetCells(w http.ResponseWriter, req *http.Request) {
	id, ok := h.runID(w, req)
	if !ok {
		return
	}
	recs, err := h.controller.store.Cells(req.Context(), id)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	out := make([]Cell, len(recs))
	for i, c := range recs {
		out[i] = cell(c)
	}
	h.write(w, req, out)
}

// Health handles GET /health. It answers 503 when any backend is unhealthy.
func (h *Handlers) Health(w http.ResponseWriter, req *http.Request) {
	all := h.controller.health.GetAllHealth()
	status := http.StatusOK
	for _, s := range all {
		if s.Status != storage.StatusHealthy {
			status = http.StatusServiceUnavailable
		}
	}
	body := struct {
		Version  string                    `json:"version"`
		Backends map[string]storage.Health `json:"backends"`
	}{constants.Version, all}
	if err := h.formatter.WriteStatus(w, req, status, body, nil); err != nil {
		h.controller.logger.Errorw("could not write response", "path", req.URL.Path, "error", err)
	}
}

// HTTPLogs handles GET /logs/http.
func (h *Handlers) HTTPLogs(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, log.GetHTTPLogBuffer().Entries())
}
