package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/UkraineNow-Intel/autoSA-backend/common"
	"github.com/UkraineNow-Intel/autoSA-backend/common/store"
	"github.com/UkraineNow-Intel/autoSA-backend/common/utils"
)

type HealthHandler struct {
	store  store.Store
	router *chi.Mux
}

func NewHealthHandler(s store.Store) *HealthHandler {
	h := &HealthHandler{
		store: s,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleHealthCheck)
	r.Get("/database", h.handleDatabaseHealth)

	h.router = r
	return h
}

func (h *HealthHandler) Router() *chi.Mux {
	return h.router
}

func (h *HealthHandler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   common.AppName,
	}

	utils.WriteJSON(w, http.StatusOK, response)
}

func (h *HealthHandler) handleDatabaseHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}

	total, err := h.store.CountSources(ctx)
	if pingErr := h.store.Ping(ctx); pingErr != nil {
		err = pingErr
	}
	if err != nil {
		response["status"] = "unhealthy"
		response["error"] = err.Error()
		utils.WriteJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	response["sources"] = total
	utils.WriteJSON(w, http.StatusOK, response)
}
