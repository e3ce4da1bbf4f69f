package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
	"github.com/UkraineNow-Intel/autoSA-backend/common/store"
	"github.com/UkraineNow-Intel/autoSA-backend/common/translator"
	"github.com/UkraineNow-Intel/autoSA-backend/common/utils"
)

type TranslationHandler struct {
	translator *translator.Translator
	store      store.Store
	validate   *validator.Validate
	router     *chi.Mux
}

func NewTranslationHandler(t *translator.Translator, s store.Store) *TranslationHandler {
	h := &TranslationHandler{
		translator: t,
		store:      s,
		validate:   validator.New(),
	}

	r := chi.NewRouter()
	r.Post("/", h.handleTranslate)
	r.Post("/sources/{id}", h.handleTranslateSource)

	h.router = r
	return h
}

func (h *TranslationHandler) Router() *chi.Mux {
	return h.router
}

type translatePayload struct {
	Text   string          `json:"text" validate:"required"`
	Source models.Language `json:"source" validate:"required,oneof=en ru uk"`
	Target models.Language `json:"target" validate:"required,oneof=en ru uk"`
}

func (h *TranslationHandler) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var p translatePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(p); err != nil {
		utils.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	translated, err := h.translator.Translate(r.Context(), p.Text, p.Source, p.Target)
	if err != nil {
		if errors.Is(err, translator.ErrNotConfigured) {
			utils.WriteError(w, http.StatusServiceUnavailable, "Translation is not configured")
			return
		}
		utils.WriteError(w, http.StatusBadGateway, "Translation failed")
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"text": translated})
}

type translateSourcePayload struct {
	Target models.Language `json:"target" validate:"required,oneof=en ru uk"`
}

// handleTranslateSource translates a stored source's text and persists
// the result as a child translation, replacing any previous one in the
// same target language.
func (h *TranslationHandler) handleTranslateSource(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid source id")
		return
	}

	var p translateSourcePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(p); err != nil {
		utils.WriteError(w, http.StatusUnprocessableEntity, err.Error())
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

	translated, err := h.translator.Translate(r.Context(), src.Text, src.Language, p.Target)
	if err != nil {
		if errors.Is(err, translator.ErrNotConfigured) {
			utils.WriteError(w, http.StatusServiceUnavailable, "Translation is not configured")
			return
		}
		utils.WriteError(w, http.StatusBadGateway, "Translation failed")
		return
	}

	kept := src.Translations[:0]
	for _, tr := range src.Translations {
		if tr.Language != p.Target {
			kept = append(kept, tr)
		}
	}
	src.Translations = append(kept, models.Translation{
		SourceID: src.ID,
		Language: p.Target,
		Text:     translated,
	})

	if err := h.store.UpdateSource(r.Context(), &src); err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to save translation")
		return
	}

	utils.WriteJSON(w, http.StatusOK, src)
}
