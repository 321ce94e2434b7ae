// Package server wires the HTTP routes and middleware.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/atelier/internal/config"
	"github.com/diewo77/atelier/internal/handlers"
	"github.com/diewo77/atelier/internal/httpx"
	"github.com/diewo77/atelier/internal/metrics"
	"github.com/diewo77/atelier/internal/middleware"
	"github.com/diewo77/atelier/internal/services"
	"github.com/diewo77/atelier/internal/view"
)

// Deps holds everything the routes need.
type Deps struct {
	DB        *gorm.DB
	Log       *zap.Logger
	Catalog   *services.CatalogService
	Tickets   *services.TicketService
	Clients   *services.ClientService
	Schedule  *services.ScheduleService
	Planning  *services.PlanningService
	Views     *view.Renderer
	RateLimit int           // requests per minute and per IP on /api; 0 disables
	Timeout   time.Duration // per-request deadline; 0 means 60s
}

// NewDeps builds the services on db.
func NewDeps(db *gorm.DB, shop config.ShopConfig, log *zap.Logger) Deps {
	if log == nil {
		log = zap.NewNop()
	}
	return Deps{
		DB:       db,
		Log:      log,
		Catalog:  services.NewCatalogService(db, log.Named("catalog")),
		Tickets:  services.NewTicketService(db, shop, log.Named("tickets")),
		Clients:  services.NewClientService(db),
		Schedule: services.NewScheduleService(db, log.Named("schedule")),
		Planning: services.NewPlanningService(db),
		Views:    view.New(view.Config{ShopName: shop.Name}),
	}
}

func health(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// New returns the application handler.
func New(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	views := d.Views
	if views == nil {
		views = view.New(view.Config{})
	}

	catalog := handlers.NewCatalogHandler(d.Catalog, views, log)
	inventory := handlers.NewInventoryHandler(d.Catalog, views, log)
	tickets := handlers.NewTicketHandler(d.Tickets, d.Catalog, views, log)
	clients := handlers.NewClientHandler(d.Clients, views, log)
	schedule := handlers.NewScheduleHandler(d.Schedule, views, log)
	planning := handlers.NewPlanningHandler(d.Planning, views, log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log.Named("http")))
	r.Use(middleware.Recover(log))
	r.Use(chimw.Timeout(timeout))
	r.Use(metrics.Middleware)
	r.Use(middleware.Prefs)

	// ─────────────────────────────────────────────────────────────────────────
	// Operations
	// ─────────────────────────────────────────────────────────────────────────
	r.Get("/health", health(d.DB))
	r.Get("/healthz", health(d.DB))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// ─────────────────────────────────────────────────────────────────────────
	// Planning
	// ─────────────────────────────────────────────────────────────────────────
	r.Get("/", planning.Week)
	r.Get("/today", planning.Today)
	r.Get("/planning", planning.Planning)

	// ─────────────────────────────────────────────────────────────────────────
	// Tickets
	// ─────────────────────────────────────────────────────────────────────────
	r.Get("/tickets", tickets.List)
	r.Get("/tickets/new", tickets.New)
	r.Post("/tickets", tickets.Create)
	r.Route("/tickets/{id}", func(r chi.Router) {
		r.Get("/", tickets.View)
		r.Post("/", tickets.Edit)
		r.Get("/edit", tickets.EditForm)
		r.Get("/receipt", tickets.Receipt)
		r.Get("/receipt.pdf", tickets.ReceiptPDF)
		r.Post("/status", tickets.SetStatus)
		r.Post("/delete", tickets.Delete)
	})
	r.Post("/retouches/{id}/status", tickets.SetRetoucheStatus)
	r.Post("/retouches/{id}/delete", tickets.DeleteRetouche)

	// ─────────────────────────────────────────────────────────────────────────
	// Clients
	// ─────────────────────────────────────────────────────────────────────────
	r.Get("/clients", clients.List)
	r.Get("/clients/{id}", clients.View)
	r.Post("/clients/{id}", clients.Update)
	r.Post("/clients/{id}/delete", clients.Delete)

	// ─────────────────────────────────────────────────────────────────────────
	// Catalog & inventory
	// ─────────────────────────────────────────────────────────────────────────
	r.Get("/settings/catalog", catalog.Settings)
	r.Post("/categories", catalog.CreateCategory)
	r.Post("/categories/{id}", catalog.RenameCategory)
	r.Post("/categories/{id}/delete", catalog.DeleteCategory)
	r.Post("/categories/{id}/subcategories", catalog.CreateSubcategory)
	r.Post("/subcategories/{id}", catalog.RenameSubcategory)
	r.Post("/subcategories/{id}/delete", catalog.DeleteSubcategory)
	r.Post("/items", catalog.CreateItem)
	r.Get("/items/{id}/edit", catalog.EditItem)
	r.Post("/items/{id}", catalog.UpdateItem)
	r.Post("/items/{id}/delete", catalog.DeleteItem)

	r.Get("/inventory", inventory.List)
	r.Post("/inventory", inventory.Create)
	r.Get("/inventory/export.xlsx", inventory.Export)
	r.Post("/inventory/import", inventory.Import)
	r.Post("/inventory/{id}", inventory.Update)
	r.Post("/inventory/{id}/delete", inventory.Delete)
	r.Get("/inventory/{id}/movements", inventory.Movements)

	// ─────────────────────────────────────────────────────────────────────────
	// Staff
	// ─────────────────────────────────────────────────────────────────────────
	r.Get("/employees", schedule.Employees)
	r.Post("/employees", schedule.CreateEmployee)
	r.Get("/employees/{id}", schedule.Calendar)
	r.Post("/employees/{id}", schedule.UpdateEmployee)
	r.Post("/employees/{id}/delete", schedule.DeleteEmployee)
	r.Post("/employees/{id}/attendance", schedule.RecordAttendance)
	r.Post("/employees/{id}/presence/delete", schedule.RemovePresence)
	r.Post("/leaves/{id}/delete", schedule.DeleteLeave)
	r.Post("/shifts", schedule.CreateShift)
	r.Post("/shifts/{id}", schedule.UpdateShift)
	r.Post("/shifts/{id}/delete", schedule.DeleteShift)

	// ─────────────────────────────────────────────────────────────────────────
	// JSON feeds for the calendar widgets and the order form
	// ─────────────────────────────────────────────────────────────────────────
	r.Route("/api", func(api chi.Router) {
		api.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		if d.RateLimit > 0 {
			api.Use(httprate.LimitByIP(d.RateLimit, time.Minute))
		}
		api.Get("/summary", planning.Summary)
		api.Get("/items", catalog.AllItems)
		api.Get("/categories/{id}/subcategories", catalog.Subcategories)
		api.Get("/subcategories/{id}/items", catalog.Items)
		api.Get("/events/tickets", planning.TicketEvents)
		api.Get("/events/shifts", planning.ShiftEvents)
		api.Get("/events/staff", planning.StaffEvents)
		api.Get("/employees/{id}/events", planning.EmployeeEvents)
	})

	return r
}
