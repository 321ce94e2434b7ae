package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/atelier/internal/models"
)

// Calendar colors.
const (
	ColorCompleted  = "#48c774"
	ColorOverdue    = "#f14668"
	ColorPending    = "#3e8ed0"
	ColorShift      = "#a18aff"
	ColorPresence   = "#48c774"
	ColorLeave      = "#f14668"
	ColorLeaveShade = "#ff9f89"
)

// Ticket-day classification.
const (
	ClassCompleted = "completed"
	ClassOverdue   = "overdue"
	ClassPending   = "pending"
)

// PlanningService is a read-only projection of tickets and staff onto calendars.
type PlanningService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewPlanningService(db *gorm.DB) *PlanningService {
	return &PlanningService{DB: db, Now: time.Now}
}

func (s *PlanningService) today() time.Time {
	if s.Now == nil {
		return models.Day(time.Now())
	}
	return models.Day(s.Now())
}

// Event is a calendar event in the shape calendar widgets expect.
type Event struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Start           string         `json:"start"`
	End             string         `json:"end,omitempty"`
	AllDay          bool           `json:"allDay"`
	Color           string         `json:"color,omitempty"`
	BackgroundColor string         `json:"backgroundColor,omitempty"`
	Display         string         `json:"display,omitempty"`
	ClassNames      []string       `json:"classNames,omitempty"`
	ExtendedProps   map[string]any `json:"extendedProps,omitempty"`
}

// Classify tells whether work due on day is completed, overdue or pending.
// A group is completed only when every retouche is done; an empty group is never completed.
func Classify(retouches []models.Retouche, due, today time.Time) string {
	done := len(retouches) > 0
	for _, r := range retouches {
		if r.Status != models.StatusDone {
			done = false
			break
		}
	}
	switch {
	case done:
		return ClassCompleted
	case models.Day(due).Before(models.Day(today)):
		return ClassOverdue
	default:
		return ClassPending
	}
}

func classColor(class string) string {
	switch class {
	case ClassCompleted:
		return ColorCompleted
	case ClassOverdue:
		return ColorOverdue
	}
	return ColorPending
}

// ─────────────────────────────────────────────────────────────────────────────
// Due work
// ─────────────────────────────────────────────────────────────────────────────

// LineCount is one "N x label" summary line.
type LineCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

func (l LineCount) String() string { return fmt.Sprintf("%d x %s", l.Count, l.Label) }

// DueGroup is the work one client has due on one day.
type DueGroup struct {
	Date      time.Time         `json:"date"`
	Client    models.Client     `json:"client"`
	TicketIDs []uint            `json:"ticket_ids"`
	Retouches []models.Retouche `json:"retouches"`
	Lines     []LineCount       `json:"lines"`
	Status    string            `json:"status"`
	Unpaid    bool              `json:"unpaid"`
}

func (s *PlanningService) dueTickets(ctx context.Context, from, to time.Time) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.DB.WithContext(ctx).
		Preload("Client").
		Preload("Retouches", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Retouches.PricedItem").
		Where("due_date >= ? AND due_date <= ?", models.Day(from), models.Day(to)).
		Order("due_date asc, client_id asc, id asc").
		Find(&tickets).Error
	return tickets, err
}

// groupDue folds tickets into one group per (due date, client), keeping the query order.
func groupDue(tickets []models.Ticket, today time.Time) []DueGroup {
	type key struct {
		day    string
		client uint
	}
	var out []DueGroup
	index := map[key]int{}
	for _, t := range tickets {
		if t.DueDate == nil {
			continue
		}
		k := key{t.DueDate.Format(models.DateLayout), t.ClientID}
		i, ok := index[k]
		if !ok {
			g := DueGroup{Date: models.Day(*t.DueDate)}
			if t.Client != nil {
				g.Client = *t.Client
			}
			out = append(out, g)
			i = len(out) - 1
			index[k] = i
		}
		out[i].TicketIDs = append(out[i].TicketIDs, t.ID)
		out[i].Retouches = append(out[i].Retouches, t.Retouches...)
		if !t.Paid {
			out[i].Unpaid = true
		}
	}
	for i := range out {
		out[i].Lines = countLines(out[i].Retouches)
		out[i].Status = Classify(out[i].Retouches, out[i].Date, today)
	}
	return out
}

func countLines(retouches []models.Retouche) []LineCount {
	var lines []LineCount
	pos := map[string]int{}
	for i := range retouches {
		label := retouches[i].Label()
		if j, ok := pos[label]; ok {
			lines[j].Count++
			continue
		}
		pos[label] = len(lines)
		lines = append(lines, LineCount{Label: label, Count: 1})
	}
	return lines
}

// DueGroups returns the work due in [from, to] grouped by day and client.
func (s *PlanningService) DueGroups(ctx context.Context, from, to time.Time) ([]DueGroup, error) {
	tickets, err := s.dueTickets(ctx, from, to)
	if err != nil {
		return nil, err
	}
	groups := groupDue(tickets, s.today())
	sortGroups(groups)
	return groups, nil
}

// Today returns the work due today grouped by client.
func (s *PlanningService) Today(ctx context.Context) ([]DueGroup, error) {
	d := s.today()
	return s.DueGroups(ctx, d, d)
}

// TicketEvents projects due work onto one all-day event per (due date, client).
func (s *PlanningService) TicketEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	groups, err := s.DueGroups(ctx, from, to)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(groups))
	for _, g := range groups {
		lines := make([]string, len(g.Lines))
		for i, l := range g.Lines {
			lines[i] = l.String()
		}
		day := g.Date.Format(models.DateLayout)
		events = append(events, Event{
			ID:         "ticket-" + day + "-" + strconv.FormatUint(uint64(g.Client.ID), 10),
			Title:      g.Client.Name,
			Start:      day,
			AllDay:     true,
			Color:      classColor(g.Status),
			ClassNames: []string{g.Status},
			ExtendedProps: map[string]any{
				"client_id": g.Client.ID,
				"phone":     g.Client.PhoneNumber(),
				"lines":     lines,
				"tickets":   g.TicketIDs,
				"status":    g.Status,
				"unpaid":    g.Unpaid,
			},
		})
	}
	return events, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Staff
// ─────────────────────────────────────────────────────────────────────────────

func (s *PlanningService) shifts(ctx context.Context, employeeID uint, from, to time.Time) ([]models.Shift, error) {
	q := s.DB.WithContext(ctx).Preload("Employee").
		Where("date >= ? AND date <= ?", models.Day(from), models.Day(to))
	if employeeID != 0 {
		q = q.Where("employee_id = ?", employeeID)
	}
	var out []models.Shift
	err := q.Order("date asc, start_time asc").Find(&out).Error
	return out, err
}

func shiftEvent(sh models.Shift) Event {
	day := sh.Date.Format(models.DateLayout)
	color := ColorShift
	title := sh.Task
	props := map[string]any{"task": sh.Task}
	if sh.Employee != nil {
		if sh.Employee.Color != "" {
			color = sh.Employee.Color
		}
		if title == "" {
			title = sh.Employee.Name
		}
		props["employee"] = sh.Employee.Name
		props["employee_id"] = sh.Employee.ID
	}
	if title == "" {
		title = "Créneau"
	}
	return Event{
		ID:            "shift-" + strconv.FormatUint(uint64(sh.ID), 10),
		Title:         title,
		Start:         day + "T" + sh.StartTime + ":00",
		End:           day + "T" + sh.EndTime + ":00",
		Color:         color,
		ExtendedProps: props,
	}
}

// ShiftEvents returns every shift in [from, to].
func (s *PlanningService) ShiftEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	shifts, err := s.shifts(ctx, 0, from, to)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(shifts))
	for _, sh := range shifts {
		events = append(events, shiftEvent(sh))
	}
	return events, nil
}

func (s *PlanningService) attendance(ctx context.Context, employeeID uint, from, to time.Time) ([]models.PresenceRecord, []models.LeaveRecord, error) {
	pq := s.DB.WithContext(ctx).Preload("Employee").
		Where("date >= ? AND date <= ? AND present = ?", models.Day(from), models.Day(to), true)
	lq := s.DB.WithContext(ctx).Preload("Employee").
		Where("start_date <= ? AND end_date >= ?", models.Day(to), models.Day(from))
	if employeeID != 0 {
		pq = pq.Where("employee_id = ?", employeeID)
		lq = lq.Where("employee_id = ?", employeeID)
	}
	var pres []models.PresenceRecord
	if err := pq.Order("date asc").Find(&pres).Error; err != nil {
		return nil, nil, err
	}
	var leaves []models.LeaveRecord
	if err := lq.Order("start_date asc").Find(&leaves).Error; err != nil {
		return nil, nil, err
	}
	return pres, leaves, nil
}

func employeeName(e *models.Employee) string {
	if e == nil {
		return ""
	}
	return e.Name
}

// leaveEnd is the exclusive end calendar widgets expect for all-day ranges.
func leaveEnd(l models.LeaveRecord) string {
	return models.Day(l.End).AddDate(0, 0, 1).Format(models.DateLayout)
}

// StaffEvents returns presence and leave of every employee in [from, to].
func (s *PlanningService) StaffEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	pres, leaves, err := s.attendance(ctx, 0, from, to)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(pres)+len(leaves))
	for _, p := range pres {
		color := ColorPresence
		if p.Employee != nil && p.Employee.Color != "" {
			color = p.Employee.Color
		}
		events = append(events, Event{
			ID:            "presence-" + strconv.FormatUint(uint64(p.ID), 10),
			Title:         employeeName(p.Employee),
			Start:         p.Date.Format(models.DateLayout),
			AllDay:        true,
			Color:         color,
			ExtendedProps: map[string]any{"type": AttendancePresence, "employee_id": p.EmployeeID},
		})
	}
	for _, l := range leaves {
		title := "Congé " + employeeName(l.Employee)
		if l.Reason != "" {
			title += " (" + l.Reason + ")"
		}
		events = append(events, Event{
			ID:            "leave-" + strconv.FormatUint(uint64(l.ID), 10),
			Title:         title,
			Start:         l.Start.Format(models.DateLayout),
			End:           leaveEnd(l),
			AllDay:        true,
			Color:         ColorLeave,
			ExtendedProps: map[string]any{"type": AttendanceLeave, "employee_id": l.EmployeeID, "reason": l.Reason},
		})
	}
	return events, nil
}

// EmployeeEvents is the personal calendar of one employee: shifts, leave shaded in
// the background, and presence on days without a shift.
func (s *PlanningService) EmployeeEvents(ctx context.Context, employeeID uint, from, to time.Time) ([]Event, error) {
	var e models.Employee
	if err := s.DB.WithContext(ctx).First(&e, employeeID).Error; err != nil {
		return nil, notFound(err)
	}
	shifts, err := s.shifts(ctx, employeeID, from, to)
	if err != nil {
		return nil, err
	}
	pres, leaves, err := s.attendance(ctx, employeeID, from, to)
	if err != nil {
		return nil, err
	}

	shiftDays := map[string]bool{}
	events := make([]Event, 0, len(shifts)+len(pres)+len(leaves))
	for _, sh := range shifts {
		shiftDays[sh.Date.Format(models.DateLayout)] = true
		events = append(events, shiftEvent(sh))
	}
	for _, p := range pres {
		d := p.Date.Format(models.DateLayout)
		if shiftDays[d] {
			continue
		}
		events = append(events, Event{
			ID:     "presence-" + strconv.FormatUint(uint64(p.ID), 10),
			Title:  "Présent",
			Start:  d,
			AllDay: true,
			Color:  e.Color,
		})
	}
	for _, l := range leaves {
		events = append(events, Event{
			ID:              "leave-" + strconv.FormatUint(uint64(l.ID), 10),
			Title:           "Congé",
			Start:           l.Start.Format(models.DateLayout),
			End:             leaveEnd(l),
			AllDay:          true,
			Display:         "background",
			BackgroundColor: ColorLeaveShade,
			ExtendedProps:   map[string]any{"reason": l.Reason},
		})
	}
	return events, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Boards
// ─────────────────────────────────────────────────────────────────────────────

var weekdayNames = [...]string{"Dimanche", "Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi"}

// BoardDay is one column of the week board.
type BoardDay struct {
	Date   time.Time      `json:"date"`
	Label  string         `json:"label"`
	Shifts []models.Shift `json:"shifts"`
	Due    []DueGroup     `json:"due"`
}

// WeekBoard is the shop's working week, Tuesday to Saturday.
type WeekBoard struct {
	Offset    int               `json:"offset"`
	Start     time.Time         `json:"start"`
	End       time.Time         `json:"end"`
	Days      []BoardDay        `json:"days"`
	Employees []models.Employee `json:"employees"`
}

// WeekStart returns the Tuesday opening the shop week that contains day.
// Sunday and Monday belong to the week that started the Tuesday before.
func WeekStart(day time.Time) time.Time {
	d := models.Day(day)
	back := (int(d.Weekday()) - int(time.Tuesday) + 7) % 7
	return d.AddDate(0, 0, -back)
}

// WeekBoard builds the five-day board offset weeks away from the current one.
func (s *PlanningService) WeekBoard(ctx context.Context, offset int) (*WeekBoard, error) {
	start := WeekStart(s.today()).AddDate(0, 0, 7*offset)
	end := start.AddDate(0, 0, 4)
	b := &WeekBoard{Offset: offset, Start: start, End: end}

	if err := s.DB.WithContext(ctx).Order("name asc").Find(&b.Employees).Error; err != nil {
		return nil, err
	}
	shifts, err := s.shifts(ctx, 0, start, end)
	if err != nil {
		return nil, err
	}
	groups, err := s.DueGroups(ctx, start, end)
	if err != nil {
		return nil, err
	}
	for i := 0; i < 5; i++ {
		d := start.AddDate(0, 0, i)
		b.Days = append(b.Days, BoardDay{Date: d, Label: weekdayNames[d.Weekday()]})
	}
	for _, sh := range shifts {
		if i := int(models.Day(sh.Date).Sub(start).Hours() / 24); i >= 0 && i < 5 {
			b.Days[i].Shifts = append(b.Days[i].Shifts, sh)
		}
	}
	for _, g := range groups {
		if i := int(g.Date.Sub(start).Hours() / 24); i >= 0 && i < 5 {
			b.Days[i].Due = append(b.Days[i].Due, g)
		}
	}
	return b, nil
}

// Planning views.
const (
	ViewWeek  = "week"
	ViewMonth = "month"
	ViewYear  = "year"
)

// Period is the due work of one week, month or year, grouped by day then client.
type Period struct {
	View   string     `json:"view"`
	Anchor time.Time  `json:"anchor"`
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
	Prev   time.Time  `json:"prev"`
	Next   time.Time  `json:"next"`
	Groups []DueGroup `json:"groups"`
}

// Bounds returns the inclusive range of the period containing anchor and the anchors
// of the previous and next periods. Unknown views fall back to week.
func Bounds(view string, anchor time.Time) (start, end, prev, next time.Time) {
	a := models.Day(anchor)
	switch view {
	case ViewMonth:
		start = time.Date(a.Year(), a.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, -1)
		return start, end, start.AddDate(0, -1, 0), start.AddDate(0, 1, 0)
	case ViewYear:
		start = time.Date(a.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(a.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
		return start, end, start.AddDate(-1, 0, 0), start.AddDate(1, 0, 0)
	default:
		back := (int(a.Weekday()) + 6) % 7
		start = a.AddDate(0, 0, -back)
		end = start.AddDate(0, 0, 6)
		return start, end, start.AddDate(0, 0, -7), start.AddDate(0, 0, 7)
	}
}

// Period groups the due work of the requested view around anchor.
func (s *PlanningService) Period(ctx context.Context, view string, anchor time.Time) (*Period, error) {
	if view != ViewMonth && view != ViewYear {
		view = ViewWeek
	}
	if anchor.IsZero() {
		anchor = s.today()
	}
	start, end, prev, next := Bounds(view, anchor)
	groups, err := s.DueGroups(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return &Period{View: view, Anchor: models.Day(anchor), Start: start, End: end, Prev: prev, Next: next, Groups: groups}, nil
}

// Summary counts the open work of the shop.
type Summary struct {
	Open     int64 `json:"open"`
	Overdue  int64 `json:"overdue"`
	DueToday int64 `json:"due_today"`
	Unpaid   int64 `json:"unpaid"`
}

func (s *PlanningService) Summary(ctx context.Context) (*Summary, error) {
	today := s.today()
	db := s.DB.WithContext(ctx).Model(&models.Ticket{})
	var sum Summary
	if err := db.Session(&gorm.Session{}).Where("status <> ?", models.StatusDone).Count(&sum.Open).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("status <> ? AND due_date < ?", models.StatusDone, today).Count(&sum.Overdue).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("status <> ? AND due_date = ?", models.StatusDone, today).Count(&sum.DueToday).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("paid = ?", false).Count(&sum.Unpaid).Error; err != nil {
		return nil, err
	}
	return &sum, nil
}

// sortGroups orders groups by day, then client name.
func sortGroups(groups []DueGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		if !groups[i].Date.Equal(groups[j].Date) {
			return groups[i].Date.Before(groups[j].Date)
		}
		return groups[i].Client.Name < groups[j].Client.Name
	})
}
