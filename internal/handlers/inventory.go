package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/diewo77/atelier/internal/middleware"
	"github.com/diewo77/atelier/internal/services"
	"github.com/diewo77/atelier/internal/view"
)

const inventoryPage = "/inventory"

// InventoryHandler serves the supply stock.
type InventoryHandler struct {
	svc   *services.CatalogService
	views *view.Renderer
	log   *zap.Logger
}

func NewInventoryHandler(svc *services.CatalogService, views *view.Renderer, log *zap.Logger) *InventoryHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &InventoryHandler{svc: svc, views: views, log: log.Named("inventory")}
}

func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := services.SupplyFilter{Query: q.Get("q"), LowOnly: checked(q.Get("low"))}
	if n, err := strconv.Atoi(q.Get("threshold")); err == nil {
		f.Threshold = n
	}
	items, err := h.svc.Supplies(r.Context(), f)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	page(h.views, w, r, h.log, "inventory.html", map[string]any{
		"Title":    "Fournitures",
		"Supplies": items,
		"Filter":   f,
	}, items)
}

func supplyInput(f url.Values) (services.SupplyInput, error) {
	in := services.SupplyInput{
		Reference: f.Get("reference"),
		Name:      f.Get("nom"),
		Color:     f.Get("couleur"),
	}
	if raw := strings.TrimSpace(f.Get("quantite")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return in, services.ErrInvalidQuantity
		}
		in.Quantity = n
	}
	return in, nil
}

func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, inventoryPage)
		return
	}
	in, err := supplyInput(f)
	if err != nil {
		fail(w, r, h.log, err, inventoryPage)
		return
	}
	item, err := h.svc.CreateSupply(r.Context(), in)
	if err != nil {
		fail(w, r, h.log, err, inventoryPage)
		return
	}
	done(w, r, http.StatusCreated, item, middleware.FlashSuccess, "saved", inventoryPage)
}

// Update is the manual correction path: any integer quantity is accepted.
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, inventoryPage)
		return
	}
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, inventoryPage)
		return
	}
	in, err := supplyInput(f)
	if err != nil {
		fail(w, r, h.log, err, inventoryPage)
		return
	}
	if err := h.svc.UpdateSupply(r.Context(), id, in); err != nil {
		fail(w, r, h.log, err, inventoryPage)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"id": id}, middleware.FlashSuccess, "saved", inventoryPage)
}

func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, inventoryPage)
		return
	}
	if err := h.svc.DeleteSupply(r.Context(), id); err != nil {
		fail(w, r, h.log, err, inventoryPage)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id}, middleware.FlashSuccess, "deleted", inventoryPage)
}

func (h *InventoryHandler) Movements(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	supply, err := h.svc.GetSupply(r.Context(), id)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	mv, err := h.svc.Movements(r.Context(), id)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	page(h.views, w, r, h.log, "movements.html", map[string]any{
		"Title":     supply.Name,
		"Supply":    supply,
		"Movements": mv,
	}, mv)
}

func (h *InventoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.ExportSuppliesXLSX(r.Context())
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	name := fmt.Sprintf("fournitures-%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = w.Write(data)
}

// Import accepts a multipart "file" upload, either .xlsx or ';' separated text.
func (h *InventoryHandler) Import(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		fail(w, r, h.log, fmt.Errorf("%w: %v", errBadRequest, err), inventoryPage)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		fail(w, r, h.log, fmt.Errorf("%w: %v", errBadRequest, err), inventoryPage)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		fail(w, r, h.log, err, inventoryPage)
		return
	}
	rep, err := h.svc.ImportFile(r.Context(), hdr.Filename, data)
	if err != nil {
		fail(w, r, h.log, err, inventoryPage)
		return
	}
	level := middleware.FlashSuccess
	if len(rep.Skipped) > 0 {
		level = middleware.FlashWarning
	}
	if wantsJSON(r) {
		writeJSON(w, rep)
		return
	}
	middleware.Flash(w, r, level, "import_done",
		fmt.Sprintf("(+%d, ~%d, -%d)", rep.Created, rep.Updated, len(rep.Skipped)))
	http.Redirect(w, r, inventoryPage, http.StatusSeeOther)
}
