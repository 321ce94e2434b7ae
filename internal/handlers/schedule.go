package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/diewo77/atelier/internal/middleware"
	"github.com/diewo77/atelier/internal/models"
	"github.com/diewo77/atelier/internal/services"
	"github.com/diewo77/atelier/internal/view"
)

const employeesPage = "/employees"

// ScheduleHandler serves employees, shifts, presences and leaves.
type ScheduleHandler struct {
	svc   *services.ScheduleService
	views *view.Renderer
	log   *zap.Logger
}

func NewScheduleHandler(svc *services.ScheduleService, views *view.Renderer, log *zap.Logger) *ScheduleHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScheduleHandler{svc: svc, views: views, log: log.Named("schedule")}
}

func employeeURL(id uint) string {
	return "/employees/" + strconv.FormatUint(uint64(id), 10)
}

func (h *ScheduleHandler) Employees(w http.ResponseWriter, r *http.Request) {
	emps, err := h.svc.Employees(r.Context())
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	page(h.views, w, r, h.log, "employees.html", map[string]any{
		"Title":     "Employés",
		"Employees": emps,
	}, emps)
}

func employeeInput(f url.Values) services.EmployeeInput {
	return services.EmployeeInput{Name: f.Get("nom"), Role: f.Get("role"), Color: f.Get("couleur")}
}

func (h *ScheduleHandler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, employeesPage)
		return
	}
	e, err := h.svc.CreateEmployee(r.Context(), employeeInput(f))
	if err != nil {
		fail(w, r, h.log, err, employeesPage)
		return
	}
	done(w, r, http.StatusCreated, e, middleware.FlashSuccess, "saved", employeesPage)
}

func (h *ScheduleHandler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, employeesPage)
		return
	}
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, employeesPage)
		return
	}
	if err := h.svc.UpdateEmployee(r.Context(), id, employeeInput(f)); err != nil {
		fail(w, r, h.log, err, employeesPage)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"id": id}, middleware.FlashSuccess, "saved", employeesPage)
}

func (h *ScheduleHandler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, employeesPage)
		return
	}
	if err := h.svc.DeleteEmployee(r.Context(), id); err != nil {
		fail(w, r, h.log, err, employeesPage)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id}, middleware.FlashSuccess, "deleted", employeesPage)
}

// Calendar shows one employee's month with the attendance form. Events load from the JSON feed.
func (h *ScheduleHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	e, err := h.svc.GetEmployee(r.Context(), id)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	from, to := monthRange(time.Now())
	leaves, err := h.svc.Leaves(r.Context(), id, from.AddDate(0, -1, 0), to.AddDate(0, 6, 0))
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	page(h.views, w, r, h.log, "employee.html", map[string]any{
		"Title":    e.Name,
		"Employee": e,
		"Leaves":   leaves,
	}, e)
}

func shiftInput(f url.Values) services.ShiftInput {
	return services.ShiftInput{
		EmployeeID: optUint(f.Get("employe_id")),
		Date:       f.Get("date"),
		StartTime:  f.Get("heure_debut"),
		EndTime:    f.Get("heure_fin"),
		Task:       f.Get("tache"),
	}
}

func (h *ScheduleHandler) CreateShift(w http.ResponseWriter, r *http.Request) {
	back := backTo(r, "/")
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	sh, err := h.svc.CreateShift(r.Context(), shiftInput(f))
	if err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	done(w, r, http.StatusCreated, sh, middleware.FlashSuccess, "saved", back)
}

func (h *ScheduleHandler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	back := backTo(r, "/")
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	if err := h.svc.UpdateShift(r.Context(), id, shiftInput(f)); err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"id": id}, middleware.FlashSuccess, "saved", back)
}

func (h *ScheduleHandler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	back := backTo(r, "/")
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	if err := h.svc.DeleteShift(r.Context(), id); err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id}, middleware.FlashSuccess, "deleted", back)
}

// RecordAttendance records presence days or a leave for the employee in the URL.
// Form keys: type (presence|leave), date_debut, date_fin, motif.
func (h *ScheduleHandler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, employeesPage)
		return
	}
	back := employeeURL(id)
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	in := services.AttendanceInput{
		EmployeeID: id,
		Kind:       strings.ToLower(strings.TrimSpace(f.Get("type"))),
		Start:      f.Get("date_debut"),
		End:        f.Get("date_fin"),
		Reason:     f.Get("motif"),
	}
	if err := h.svc.RecordAttendance(r.Context(), in); err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"employee_id": id, "type": in.Kind}, middleware.FlashSuccess, "saved", back)
}

func (h *ScheduleHandler) RemovePresence(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, employeesPage)
		return
	}
	back := employeeURL(id)
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	day, err := models.ParseDay(strings.TrimSpace(f.Get("date")))
	if err != nil {
		fail(w, r, h.log, services.ErrInvalidDate, back)
		return
	}
	if err := h.svc.RemovePresence(r.Context(), id, day); err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"employee_id": id, "date": day.Format(models.DateLayout)},
		middleware.FlashSuccess, "deleted", back)
}

func (h *ScheduleHandler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	back := backTo(r, employeesPage)
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	if err := h.svc.DeleteLeave(r.Context(), id); err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id}, middleware.FlashSuccess, "deleted", back)
}
