package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/diewo77/atelier/internal/models"
	"github.com/diewo77/atelier/internal/services"
	"github.com/diewo77/atelier/internal/view"
)

// PlanningHandler serves the week board, the day list, the period planning and
// the calendar event feeds.
type PlanningHandler struct {
	svc   *services.PlanningService
	views *view.Renderer
	log   *zap.Logger
}

func NewPlanningHandler(svc *services.PlanningService, views *view.Renderer, log *zap.Logger) *PlanningHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PlanningHandler{svc: svc, views: views, log: log.Named("planning")}
}

func monthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

// parseDay reads the calendar day of an ISO date or date-time ("2026-03-01T00:00:00+01:00").
func parseDay(s string) (time.Time, bool) {
	if len(s) > 10 {
		s = s[:10]
	}
	d, err := models.ParseDay(s)
	return d, err == nil
}

// eventRange reads the start/end query of calendar widgets. end is exclusive there,
// the services take inclusive bounds. Missing bounds default to the current month.
func eventRange(r *http.Request) (time.Time, time.Time) {
	from, to := monthRange(time.Now())
	q := r.URL.Query()
	if d, ok := parseDay(q.Get("start")); ok {
		from = d
	}
	if d, ok := parseDay(q.Get("end")); ok {
		to = d.AddDate(0, 0, -1)
	}
	if to.Before(from) {
		to = from
	}
	return from, to
}

// Week is the home page: the Tuesday to Saturday board.
func (h *PlanningHandler) Week(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("week"))
	board, err := h.svc.WeekBoard(r.Context(), offset)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	sum, err := h.svc.Summary(r.Context())
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	page(h.views, w, r, h.log, "index.html", map[string]any{
		"Title":   "Semaine",
		"Board":   board,
		"Summary": sum,
		"Prev":    offset - 1,
		"Next":    offset + 1,
	}, board)
}

func (h *PlanningHandler) Today(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Today(r.Context())
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	page(h.views, w, r, h.log, "today.html", map[string]any{
		"Title":  "Aujourd'hui",
		"Groups": groups,
	}, groups)
}

// Planning groups due work by week, month or year around ?date=.
func (h *PlanningHandler) Planning(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	anchor, _ := parseDay(q.Get("date"))
	p, err := h.svc.Period(r.Context(), q.Get("view"), anchor)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	page(h.views, w, r, h.log, "planning.html", map[string]any{
		"Title":  "Planning",
		"Period": p,
		"Views":  []string{services.ViewWeek, services.ViewMonth, services.ViewYear},
	}, p)
}

func (h *PlanningHandler) TicketEvents(w http.ResponseWriter, r *http.Request) {
	from, to := eventRange(r)
	events, err := h.svc.TicketEvents(r.Context(), from, to)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	writeJSON(w, events)
}

func (h *PlanningHandler) ShiftEvents(w http.ResponseWriter, r *http.Request) {
	from, to := eventRange(r)
	events, err := h.svc.ShiftEvents(r.Context(), from, to)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	writeJSON(w, events)
}

func (h *PlanningHandler) StaffEvents(w http.ResponseWriter, r *http.Request) {
	from, to := eventRange(r)
	events, err := h.svc.StaffEvents(r.Context(), from, to)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	writeJSON(w, events)
}

func (h *PlanningHandler) EmployeeEvents(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	from, to := eventRange(r)
	events, err := h.svc.EmployeeEvents(r.Context(), id, from, to)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	writeJSON(w, events)
}

// Summary answers the open-work counters shown in the header.
func (h *PlanningHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context())
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	writeJSON(w, sum)
}
