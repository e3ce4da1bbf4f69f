package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
	"github.com/UkraineNow-Intel/autoSA-backend/common/store"
	"github.com/UkraineNow-Intel/autoSA-backend/common/utils"
)

type SourceHandler struct {
	store    store.Store
	validate *validator.Validate
	router   *chi.Mux
}

func NewSourceHandler(s store.Store) *SourceHandler {
	h := &SourceHandler{
		store:    s,
		validate: validator.New(),
	}

	r := chi.NewRouter()
	r.Get("/", h.handleListSources)
	r.Post("/", h.handleCreateSource)
	r.Get("/{id}", h.handleGetSource)
	r.Put("/{id}", h.handleUpdateSource)
	r.Delete("/{id}", h.handleDeleteSource)

	h.router = r
	return h
}

func (h *SourceHandler) Router() *chi.Mux {
	return h.router
}

type sourcePayload struct {
	ExternalID   string               `json:"external_id" validate:"required"`
	Interface    models.Interface     `json:"interface" validate:"required,oneof=website twitter telegram api"`
	Origin       string               `json:"origin"`
	URL          string               `json:"url"`
	MediaURL     string               `json:"media_url"`
	Headline     string               `json:"headline"`
	Text         string               `json:"text" validate:"required"`
	Language     models.Language      `json:"language" validate:"omitempty,oneof=en ru uk"`
	Pinned       bool                 `json:"pinned"`
	Deleted      bool                 `json:"deleted"`
	Timestamp    time.Time            `json:"timestamp" validate:"required"`
	Tags         []string             `json:"tags"`
	Translations []models.Translation `json:"translations"`
	Locations    []models.Location    `json:"locations"`
}

func (p sourcePayload) toSource() models.Source {
	lang := p.Language
	if lang == "" {
		lang = models.LanguageEN
	}
	return models.Source{
		ExternalID:   p.ExternalID,
		Interface:    p.Interface,
		Origin:       p.Origin,
		URL:          p.URL,
		MediaURL:     p.MediaURL,
		Headline:     p.Headline,
		Text:         p.Text,
		Language:     lang,
		Pinned:       p.Pinned,
		Deleted:      p.Deleted,
		Timestamp:    p.Timestamp,
		Tags:         p.Tags,
		Translations: p.Translations,
		Locations:    p.Locations,
	}
}

func (h *SourceHandler) handleListSources(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSourceFilter(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sources, total, err := h.store.ListSources(r.Context(), filter)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to list sources")
		return
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	utils.WritePagination(w, http.StatusOK, sources, page, perPage, total)
}

func (h *SourceHandler) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var p sourcePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(p); err != nil {
		utils.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	src := p.toSource()
	if err := h.store.CreateSource(r.Context(), &src); err != nil {
		if errors.Is(err, store.ErrDuplicateExternalID) {
			utils.WriteError(w, http.StatusConflict, "external_id already exists")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Failed to create source")
		return
	}

	utils.WriteJSON(w, http.StatusCreated, src)
}

func (h *SourceHandler) handleGetSource(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid source id")
		return
	}

	src, err := h.store.GetSource(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Source not found")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Failed to get source")
		return
	}

	utils.WriteJSON(w, http.StatusOK, src)
}

func (h *SourceHandler) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid source id")
		return
	}

	var p sourcePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(p); err != nil {
		utils.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	src := p.toSource()
	src.ID = id
	if err := h.store.UpdateSource(r.Context(), &src); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Source not found")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Failed to update source")
		return
	}

	utils.WriteJSON(w, http.StatusOK, src)
}

func (h *SourceHandler) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid source id")
		return
	}

	if err := h.store.DeleteSource(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Source not found")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Failed to delete source")
		return
	}

	utils.WriteMessage(w, http.StatusOK, "Source deleted")
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseSourceFilter(r *http.Request) (store.SourceFilter, error) {
	q := r.URL.Query()
	filter := store.SourceFilter{
		Interface: models.Interface(q.Get("interface")),
		Language:  models.Language(q.Get("language")),
		Origin:    q.Get("origin"),
		Tag:       q.Get("tag"),
		Search:    q.Get("search"),
	}

	for name, dst := range map[string]**bool{"pinned": &filter.Pinned, "deleted": &filter.Deleted} {
		if s := q.Get(name); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return store.SourceFilter{}, errors.New("invalid " + name + " value")
			}
			*dst = &v
		}
	}

	for name, dst := range map[string]**time.Time{"since": &filter.Since, "until": &filter.Until} {
		if s := q.Get(name); s != "" {
			ts, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return store.SourceFilter{}, errors.New("invalid " + name + " value")
			}
			*dst = &ts
		}
	}

	if s := q.Get("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil || page < 1 {
			return store.SourceFilter{}, errors.New("invalid page value")
		}
		filter.Page = page
	}
	if s := q.Get("per_page"); s != "" {
		perPage, err := strconv.Atoi(s)
		if err != nil || perPage < 1 {
			return store.SourceFilter{}, errors.New("invalid per_page value")
		}
		filter.PerPage = perPage
	}
	return filter, nil
}
