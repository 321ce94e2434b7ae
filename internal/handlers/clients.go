package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/diewo77/atelier/internal/middleware"
	"github.com/diewo77/atelier/internal/services"
	"github.com/diewo77/atelier/internal/view"
)

// ClientHandler serves the client directory.
type ClientHandler struct {
	svc   *services.ClientService
	views *view.Renderer
	log   *zap.Logger
}

func NewClientHandler(svc *services.ClientService, views *view.Renderer, log *zap.Logger) *ClientHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClientHandler{svc: svc, views: views, log: log.Named("clients")}
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	clients, err := h.svc.List(r.Context(), query)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	page(h.views, w, r, h.log, "clients.html", map[string]any{
		"Title":   "Clients",
		"Clients": clients,
		"Query":   query,
	}, clients)
}

func (h *ClientHandler) View(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	page(h.views, w, r, h.log, "client.html", map[string]any{
		"Title":  c.Name,
		"Client": c,
	}, c)
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "/clients")
		return
	}
	back := "/clients/" + strconv.FormatUint(uint64(id), 10)
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	if err := h.svc.Update(r.Context(), id, f.Get("nom"), f.Get("numero_telephone")); err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"id": id}, middleware.FlashSuccess, "saved", back)
}

// Delete removes the client together with its tickets.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "/clients")
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		fail(w, r, h.log, err, "/clients")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id}, middleware.FlashSuccess, "deleted", "/clients")
}
