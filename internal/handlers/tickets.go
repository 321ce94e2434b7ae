package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/diewo77/atelier/internal/middleware"
	"github.com/diewo77/atelier/internal/models"
	"github.com/diewo77/atelier/internal/receipt"
	"github.com/diewo77/atelier/internal/services"
	"github.com/diewo77/atelier/internal/view"
)

// TicketHandler serves order entry, receipts and the ticket ledger.
// Form keys follow the shop's paper ticket: nom_client, numero_telephone, date_echeance, ...
type TicketHandler struct {
	svc     *services.TicketService
	catalog *services.CatalogService
	views   *view.Renderer
	log     *zap.Logger
}

func NewTicketHandler(svc *services.TicketService, catalog *services.CatalogService, views *view.Renderer, log *zap.Logger) *TicketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TicketHandler{svc: svc, catalog: catalog, views: views, log: log.Named("tickets")}
}

func ticketURL(id uint, suffix string) string {
	return "/tickets/" + strconv.FormatUint(uint64(id), 10) + suffix
}

// list returns the values of key, accepting both "key[]" (form arrays) and "key".
func list(f url.Values, key string) []string {
	if v, ok := f[key+"[]"]; ok {
		return v
	}
	return f[key]
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

// last returns the final submitted value; a hidden "0" followed by a checked box reads as checked.
func last(f url.Values, key string) (string, bool) {
	v, ok := f[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[len(v)-1], true
}

// ticketInput decodes the parallel line arrays of the order form.
func ticketInput(f url.Values) (services.TicketInput, error) {
	in := services.TicketInput{
		ClientName:  f.Get("nom_client"),
		ClientPhone: f.Get("numero_telephone"),
		Comment:     f.Get("commentaire"),
	}
	if v, ok := last(f, "paye"); ok {
		in.Paid = checked(v)
	}
	if raw := strings.TrimSpace(f.Get("date_echeance")); raw != "" {
		d, err := models.ParseDay(raw)
		if err != nil {
			return in, services.ErrInvalidDate
		}
		in.DueDate = &d
	}

	ids := list(f, "detail_retouche_id")
	prices := list(f, "prix")
	descs := list(f, "description")
	qtys := list(f, "quantite")
	n := max(len(ids), len(prices), len(descs), len(qtys))

	allTried := checked(f.Get("essayage_boutique"))
	tried := map[int]bool{}
	for _, v := range list(f, "essayage") {
		if i, err := strconv.Atoi(v); err == nil {
			tried[i] = true
		}
	}
	for i := 0; i < n; i++ {
		l := services.LineInput{
			PricedItemID: optUint(at(ids, i)),
			Price:        at(prices, i),
			Description:  at(descs, i),
			Quantity:     1,
			TriedInShop:  allTried || tried[i],
		}
		blank := l.PricedItemID == nil && strings.TrimSpace(l.Price) == "" && strings.TrimSpace(l.Description) == ""
		if raw := strings.TrimSpace(at(qtys, i)); raw != "" && !blank {
			q, err := strconv.Atoi(raw)
			if err != nil || q < 1 {
				return in, services.ErrInvalidQuantity
			}
			l.Quantity = q
		}
		in.Lines = append(in.Lines, l)
	}
	return in, nil
}

// New shows the order form.
func (h *TicketHandler) New(w http.ResponseWriter, r *http.Request) {
	tree, err := h.catalog.Tree(r.Context())
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	page(h.views, w, r, h.log, "ticket_new.html", map[string]any{
		"Title":      "Nouveau ticket",
		"Categories": tree,
	}, tree)
}

// Create records the ticket and answers with its receipt.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, "/tickets/new")
		return
	}
	in, err := ticketInput(f)
	if err != nil {
		fail(w, r, h.log, err, "/tickets/new")
		return
	}
	rc, err := h.svc.Create(r.Context(), in)
	if err != nil {
		fail(w, r, h.log, err, "/tickets/new")
		return
	}
	done(w, r, http.StatusCreated, rc, middleware.FlashSuccess, "ticket_created", ticketURL(rc.Ticket.ID, "/receipt"))
}

func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := services.TicketFilter{Status: q.Get("status"), Query: q.Get("q")}
	if id := optUint(q.Get("client_id")); id != nil {
		f.ClientID = *id
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = n
	}
	tickets, err := h.svc.List(r.Context(), f)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	page(h.views, w, r, h.log, "tickets.html", map[string]any{
		"Title":   "Tickets",
		"Tickets": tickets,
		"Filter":  f,
	}, tickets)
}

func (h *TicketHandler) receipt(w http.ResponseWriter, r *http.Request) (*services.Receipt, bool) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "")
		return nil, false
	}
	rc, err := h.svc.Receipt(r.Context(), id)
	if err != nil {
		fail(w, r, h.log, err, "")
		return nil, false
	}
	return rc, true
}

// View shows a ticket with its lines and the status controls.
func (h *TicketHandler) View(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.receipt(w, r)
	if !ok {
		return
	}
	page(h.views, w, r, h.log, "ticket_view.html", map[string]any{
		"Title":    fmt.Sprintf("Ticket %d", rc.Ticket.ID),
		"Receipt":  rc,
		"Statuses": []string{models.StatusInProgress, models.StatusDone},
	}, rc)
}

// Receipt reprints the receipt; totals are recomputed from the stored lines.
func (h *TicketHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.receipt(w, r)
	if !ok {
		return
	}
	page(h.views, w, r, h.log, "receipt.html", map[string]any{
		"Title":   fmt.Sprintf("Ticket %d", rc.Ticket.ID),
		"Receipt": rc,
		"ShopCfg": rc.Shop,
		"Rate":    rc.Shop.TaxRate().Shift(2).StringFixed(1),
	}, rc)
}

func (h *TicketHandler) ReceiptPDF(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.receipt(w, r)
	if !ok {
		return
	}
	data, err := receipt.PDF(rc)
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="ticket-%d.pdf"`, rc.Ticket.ID))
	_, _ = w.Write(data)
}

// EditForm shows the ticket with one editable row per line.
func (h *TicketHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.receipt(w, r)
	if !ok {
		return
	}
	items, err := h.catalog.AllItems(r.Context())
	if err != nil {
		fail(w, r, h.log, err, "")
		return
	}
	page(h.views, w, r, h.log, "ticket_edit.html", map[string]any{
		"Title":    fmt.Sprintf("Ticket %d", rc.Ticket.ID),
		"Receipt":  rc,
		"Items":    items,
		"Statuses": []string{models.StatusInProgress, models.StatusDone},
	}, rc)
}

var lineFields = map[string]bool{"prix": true, "statut": true, "description": true, "detail": true, "essayage": true}

// ticketEdit decodes a partial edit: only submitted keys are set.
// Line fields are keyed by retouche id, e.g. prix_12, statut_12.
func ticketEdit(f url.Values) services.TicketEdit {
	e := services.TicketEdit{Lines: map[uint]services.RetoucheEdit{}}
	if v, ok := last(f, "paye"); ok {
		p := checked(v)
		e.Paid = &p
	}
	if v, ok := f["date_echeance"]; ok && len(v) > 0 {
		e.DueDate = &v[0]
	}
	if v, ok := f["commentaire"]; ok && len(v) > 0 {
		e.Comment = &v[0]
	}
	for key := range f {
		i := strings.LastIndexByte(key, '_')
		if i < 0 || !lineFields[key[:i]] {
			continue
		}
		id := optUint(key[i+1:])
		if id == nil {
			continue
		}
		val, _ := last(f, key)
		le := e.Lines[*id]
		switch key[:i] {
		case "prix":
			le.Price = &val
		case "statut":
			le.Status = &val
		case "description":
			le.Description = &val
		case "detail":
			le.PricedItemID = &val
		case "essayage":
			b := checked(val)
			le.TriedInShop = &b
		}
		e.Lines[*id] = le
	}
	return e
}

// Edit applies the submitted fields. Rejected fields are reported; the others are saved.
func (h *TicketHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "/tickets")
		return
	}
	back := ticketURL(id, "")
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, ticketURL(id, "/edit"))
		return
	}
	v, err := h.svc.Edit(r.Context(), id, ticketEdit(f))
	if err != nil {
		fail(w, r, h.log, err, ticketURL(id, "/edit"))
		return
	}
	if wantsJSON(r) {
		writeJSON(w, map[string]any{"id": id, "violations": v})
		return
	}
	if !v.Empty() {
		middleware.Flash(w, r, middleware.FlashWarning, "ticket_updated", describe(r, v))
		http.Redirect(w, r, ticketURL(id, "/edit"), http.StatusSeeOther)
		return
	}
	middleware.Flash(w, r, middleware.FlashSuccess, "ticket_updated")
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// statusDone answers a status change. When a ready message was prepared the HTML flow
// shows it with its sms: link instead of redirecting, so it can be sent from the phone.
func (h *TicketHandler) statusDone(w http.ResponseWriter, r *http.Request, ch *services.StatusChange, back string) {
	if wantsJSON(r) {
		writeJSON(w, ch)
		return
	}
	if ch.Link != nil && !ch.Sent {
		page(h.views, w, r, h.log, "notify.html", map[string]any{
			"Title":   fmt.Sprintf("Ticket %d", ch.TicketID),
			"Change":  ch,
			"Back":    back,
			"Warning": ch.Warning,
		}, ch)
		return
	}
	switch {
	case ch.Warning != "":
		middleware.Flash(w, r, middleware.FlashWarning, ch.Warning)
	case ch.Sent:
		middleware.Flash(w, r, middleware.FlashSuccess, "notification_sent")
	default:
		middleware.Flash(w, r, middleware.FlashSuccess, "status_updated")
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (h *TicketHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "/tickets")
		return
	}
	back := backTo(r, ticketURL(id, ""))
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	ch, err := h.svc.SetTicketStatus(r.Context(), id, f.Get("statut"))
	if err != nil {
		fail(w, r, h.log, err, back)
		return
	}
	h.statusDone(w, r, ch, back)
}

func (h *TicketHandler) SetRetoucheStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "/tickets")
		return
	}
	f, err := readForm(r)
	if err != nil {
		fail(w, r, h.log, err, backTo(r, "/tickets"))
		return
	}
	ch, err := h.svc.SetRetoucheStatus(r.Context(), id, f.Get("statut"))
	if err != nil {
		fail(w, r, h.log, err, backTo(r, "/tickets"))
		return
	}
	h.statusDone(w, r, ch, backTo(r, ticketURL(ch.TicketID, "")))
}

func (h *TicketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "/tickets")
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		fail(w, r, h.log, err, "/tickets")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id}, middleware.FlashSuccess, "ticket_deleted", "/tickets")
}

func (h *TicketHandler) DeleteRetouche(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		fail(w, r, h.log, err, "/tickets")
		return
	}
	ticketID, err := h.svc.DeleteRetouche(r.Context(), id)
	if err != nil {
		fail(w, r, h.log, err, backTo(r, "/tickets"))
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id, "ticket_id": ticketID},
		middleware.FlashSuccess, "retouche_deleted", ticketURL(ticketID, "/edit"))
}
