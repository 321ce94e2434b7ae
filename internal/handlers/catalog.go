package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/diewo77/atelier/internal/middleware"
	"github.com/diewo77/atelier/internal/models"
	"github.com/diewo77/atelier/internal/services"
	"github.com/diewo77/atelier/internal/view"
)

const catalogPage = "/settings/catalog"

// CatalogHandler serves the price grid settings: categories, subcategories and priced items.
// Forms post nom, prix, sous_categorie_id and the fournitures id list.
type CatalogHandler struct {
	svc   *services.CatalogService
	views *view.Renderer
	log   *zap.Logger
}

func NewCatalogHandler(svc *services.CatalogService, views *view.Renderer, log *zap.Logger) *CatalogHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogHandler{svc: svc, views: views, log: log.Named("catalog")}
}

func (h *CatalogHandler) Settings(w http.ResponseWriter, r *http.Request) {
	tree, err := h.svc.Tree(r.Context())
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	supplies, err := h.svc.Supplies(r.Context(), services.SupplyFilter{})
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	page(h.views, w, r, h.log, "catalog.html", map[string]any{
		"Title":      "Grille tarifaire",
		"Categories": tree,
		"Supplies":   supplies,
	}, tree)
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	c, err := h.svc.CreateCategory(r.Context(), f.Get("nom"))
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	done(w, r, http.StatusCreated, c, middleware.FlashSuccess, "saved", catalogPage)
}

func (h *CatalogHandler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	if err := h.svc.RenameCategory(r.Context(), id, f.Get("nom")); err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"id": id}, middleware.FlashSuccess, "saved", catalogPage)
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	if err := h.svc.DeleteCategory(r.Context(), id); err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id}, middleware.FlashSuccess, "deleted", catalogPage)
}

type option struct {
	ID    uint    `json:"id"`
	Name  string  `json:"name"`
	Price *string `json:"price,omitempty"`
}

// Subcategories answers the cascading select of the ticket form.
func (h *CatalogHandler) Subcategories(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	subs, err := h.svc.Subcategories(r.Context(), id)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	out := make([]option, 0, len(subs))
	for _, s := range subs {
		out = append(out, option{ID: s.ID, Name: s.Name})
	}
	writeJSON(w, out)
}

func (h *CatalogHandler) CreateSubcategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	sub, err := h.svc.CreateSubcategory(r.Context(), id, f.Get("nom"))
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	done(w, r, http.StatusCreated, sub, middleware.FlashSuccess, "saved", catalogPage)
}

func (h *CatalogHandler) RenameSubcategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	if err := h.svc.RenameSubcategory(r.Context(), id, f.Get("nom")); err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"id": id}, middleware.FlashSuccess, "saved", catalogPage)
}

func (h *CatalogHandler) DeleteSubcategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	if err := h.svc.DeleteSubcategory(r.Context(), id); err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id}, middleware.FlashSuccess, "deleted", catalogPage)
}

// Items answers the item select of the ticket form with the list prices.
func (h *CatalogHandler) Items(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	items, err := h.svc.Items(r.Context(), id)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	out := make([]option, 0, len(items))
	for _, it := range items {
		o := option{ID: it.ID, Name: it.Name}
		if it.Price.Valid {
			p := it.Price.Decimal.StringFixed(2)
			o.Price = &p
		}
		out = append(out, o)
	}
	writeJSON(w, out)
}

func itemInput(f map[string][]string) services.ItemInput {
	in := services.ItemInput{}
	if v := f["nom"]; len(v) > 0 {
		in.Name = v[0]
	}
	if v := f["prix"]; len(v) > 0 {
		in.Price = v[0]
	}
	if v := f["sous_categorie_id"]; len(v) > 0 {
		if n, err := strconv.ParseUint(v[0], 10, 64); err == nil {
			in.SubcategoryID = uint(n)
		}
	}
	in.SupplyIDs = uints(f["fournitures"])
	return in
}

func (h *CatalogHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	item, err := h.svc.CreateItem(r.Context(), itemInput(f))
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	done(w, r, http.StatusCreated, item, middleware.FlashSuccess, "saved", catalogPage)
}

func (h *CatalogHandler) EditItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	item, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	tree, err := h.svc.Tree(r.Context())
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	supplies, err := h.svc.Supplies(r.Context(), services.SupplyFilter{})
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	linked := map[uint]bool{}
	for _, s := range item.Supplies {
		linked[s.ID] = true
	}
	page(h.views, w, r, h.log, "item_edit.html", map[string]any{
		"Title":      item.Name,
		"Item":       item,
		"Categories": tree,
		"Supplies":   supplies,
		"Linked":     linked,
	}, item)
}

func (h *CatalogHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	back := "/items/" + strconv.FormatUint(uint64(id), 10) + "/edit"
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	adj, err := h.svc.UpdateItem(r.Context(), id, itemInput(f))
	if err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	level, code := middleware.FlashSuccess, "saved"
	if len(adj.Skipped) > 0 {
		level, code = middleware.FlashWarning, "stock_skipped"
	}
	done(w, r, http.StatusOK, adj, level, code, catalogPage)
}

func (h *CatalogHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	if err := h.svc.DeleteItem(r.Context(), id); err != nil {
		fail(w, r, h.log, err, catalogPage)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id}, middleware.FlashSuccess, "deleted", catalogPage)
}

// AllItems lists every priced item with its full name, for the ticket form.
func (h *CatalogHandler) AllItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.AllItems(r.Context())
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	type row struct {
		models.PricedItem
		FullName string `json:"full_name"`
	}
	out := make([]row, 0, len(items))
	for i := range items {
		out = append(out, row{PricedItem: items[i], FullName: items[i].FullName()})
	}
	writeJSON(w, out)
}
