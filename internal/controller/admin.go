package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-cpu-hotplug/api/v1alpha1"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/config"
)

const apiPrefix = "/api/v1alpha1"

// AdminHandler serves the engine's HTTP control surface.
type AdminHandler struct {
	engine *Engine
}

// NewAdminHandler returns the admin routes of e. Metrics are served from gatherer.
func NewAdminHandler(e *Engine, gatherer prometheus.Gatherer) http.Handler {
	h := &AdminHandler{engine: e}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET "+apiPrefix+"/status", h.Status)
	mux.HandleFunc("GET "+apiPrefix+"/config", h.GetConfig)
	mux.HandleFunc("PUT "+apiPrefix+"/config", h.PutConfig)
	mux.HandleFunc("PUT "+apiPrefix+"/enabled", h.PutEnabled)

	return mux
}

func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.Status()
	if err != nil {
		ctrl.LoggerFrom(r.Context()).Error(err, "Failed to assemble status")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *AdminHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ConfigSpec(h.engine.Config()))
}

func (h *AdminHandler) PutConfig(w http.ResponseWriter, r *http.Request) {
	var spec v1alpha1.EngineConfigSpec
	if err := decode(r, &spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cfg, err := h.engine.UpdateConfig(func(c *config.EngineConfig) { ApplyConfigSpec(spec, c) })
	if err != nil {
		if errors.Is(err, config.ErrInvalidConfig) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ConfigSpec(cfg))
}

func (h *AdminHandler) PutEnabled(w http.ResponseWriter, r *http.Request) {
	var req v1alpha1.EnabledRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.engine.SetEnabled(r.Context(), req.Enabled); err != nil {
		ctrl.LoggerFrom(r.Context()).Error(err, "Failed to toggle engine", "enabled", req.Enabled)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v1alpha1.EnabledRequest{Enabled: h.engine.Enabled()})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, v1alpha1.ErrorResponse{Error: msg})
}
