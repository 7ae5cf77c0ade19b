package scenarios

import (
	"encoding/json"
	"errors"
	"net/http"

	"capital_waterfall/pkg/core/config"
	"capital_waterfall/pkg/core/logger"
	"capital_waterfall/pkg/core/store"
)

// Handler exposes the scenario library.
type Handler struct {
	store store.ScenarioStore
	log   logger.Logger
}

func NewHandler(st store.ScenarioStore, log logger.Logger) *Handler {
	return &Handler{store: st, log: log}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/scenarios", h.HandleList)
	mux.HandleFunc("POST /api/scenarios", h.HandleSave)
	mux.HandleFunc("GET /api/scenarios/{name}", h.HandleGet)
	mux.HandleFunc("DELETE /api/scenarios/{name}", h.HandleDelete)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Error("failed to encode response", map[string]interface{}{"status": status})
		http.Error(w, "failed to encode response: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		h.log.WithError(err).Warn("failed to write response", nil)
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, store.ErrInvalidName):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.log.WithError(err).Error("scenario store error", nil)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var s config.Scenario
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec, err := h.store.Save(r.Context(), s)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.log.Info("scenario saved", map[string]interface{}{"name": rec.Name, "id": rec.ID.String()})
	h.writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Load(r.Context(), r.PathValue("name"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("name")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
