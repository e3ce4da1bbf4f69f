package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/rs/zerolog/log"

	"github.com/UkraineNow-Intel/autoSA-backend/common/messaging"
	"github.com/UkraineNow-Intel/autoSA-backend/common/utils"
	"github.com/UkraineNow-Intel/autoSA-backend/refresh"
)

type RefreshHandler struct {
	runner *refresh.Runner
	broker *messaging.NatsBroker
	router *chi.Mux
}

// NewRefreshHandler wires the run trigger. broker may be nil; completed
// runs are then not announced.
func NewRefreshHandler(runner *refresh.Runner, broker *messaging.NatsBroker) *RefreshHandler {
	h := &RefreshHandler{
		runner: runner,
		broker: broker,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleRefresh)

	h.router = r
	return h
}

func (h *RefreshHandler) Router() *chi.Mux {
	return h.router
}

// handleRefresh runs a refresh synchronously. The response is always 200
// with the raw report body; failures are data inside the report, not
// transport errors.
func (h *RefreshHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	overwrite := false
	if s := q.Get("overwrite"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "invalid overwrite value")
			return
		}
		overwrite = v
	}

	opts := refresh.Options{
		Overwrite: overwrite,
		StartTime: parseTimeParam(q.Get("start_time")),
		EndTime:   parseTimeParam(q.Get("end_time")),
	}

	report := h.runner.Run(r.Context(), opts)
	h.announce(report)
	utils.WriteRawJSON(w, http.StatusOK, report)
}

func (h *RefreshHandler) announce(report refresh.Report) {
	if h.broker == nil {
		return
	}
	if err := h.broker.PublishJSON(messaging.SubjectRefreshCompleted, report); err != nil {
		log.Warn().Err(err).Msg("Failed to publish refresh report")
	}
}

var timeParamParser = func() *when.Parser {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)
	return p
}()

// parseTimeParam accepts RFC3339, a bare date, or a humanized phrase like
// "24 hours ago". Unparseable input is treated as absent.
func parseTimeParam(s string) *time.Time {
	if s == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		ts = ts.UTC()
		return &ts
	}
	if ts, err := time.Parse("2006-01-02", s); err == nil {
		ts = ts.UTC()
		return &ts
	}
	if r, err := timeParamParser.Parse(s, time.Now()); err == nil && r != nil {
		ts := r.Time.UTC()
		return &ts
	}
	log.Warn().Str("value", s).Msg("Unparseable time parameter ignored")
	return nil
}
