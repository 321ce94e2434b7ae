// Package receipt renders a ticket receipt as a printable A5 PDF.
package receipt

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"

	"github.com/diewo77/atelier/internal/models"
	"github.com/diewo77/atelier/internal/services"
)

const dateFR = "02/01/2006"

func money(r models.Retouche) string {
	if !r.Price.Valid {
		return "-"
	}
	return euros(r.Price.Decimal.StringFixed(2))
}

func euros(s string) string {
	return strings.Replace(s, ".", ",", 1) + " €"
}

// PDF renders rc. Accented characters are translated to the core font code page.
func PDF(rc *services.Receipt) ([]byte, error) {
	if rc == nil {
		return nil, fmt.Errorf("receipt: nil receipt")
	}
	pdf := gofpdf.New("P", "mm", "A5", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.SetTitle(tr(fmt.Sprintf("Ticket %d", rc.Ticket.ID)), false)
	pdf.AddPage()

	shop := rc.Shop
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 7, tr(shop.Name), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	for _, l := range []string{shop.Address, shop.City, "Tél. " + shop.Phone, shop.Email} {
		if strings.TrimSpace(l) == "" || l == "Tél. " {
			continue
		}
		pdf.CellFormat(0, 4, tr(l), "", 1, "C", false, 0, "")
	}
	if shop.SIRET != "" {
		pdf.CellFormat(0, 4, tr("SIRET "+shop.SIRET), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Ticket n° %d", rc.Ticket.ID)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, tr("Client : "+rc.Client.Name), "", 1, "L", false, 0, "")
	if p := rc.Client.PhoneNumber(); p != "" {
		pdf.CellFormat(0, 5, tr("Téléphone : "+p), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 5, tr("Déposé le : "+rc.Ticket.CreatedAt.Format(dateFR)), "", 1, "L", false, 0, "")
	if rc.Ticket.DueDate != nil {
		pdf.CellFormat(0, 5, tr("À retirer le : "+rc.Ticket.DueDate.Format(dateFR)), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(98, 6, tr("Retouche"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 6, tr("Prix HT"), "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, r := range rc.Retouches {
		label := r.Label()
		if r.Description != "" && r.PricedItem != nil {
			label += " - " + r.Description
		}
		if r.TriedInShop {
			label += " (essayé)"
		}
		pdf.CellFormat(98, 6, tr(label), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, tr(money(r)), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	rate := shop.TaxRate().Shift(2).StringFixed(1)
	totals := [][2]string{
		{"Total HT", euros(rc.Totals.PreTax.StringFixed(2))},
		{"TVA " + strings.Replace(rate, ".", ",", 1) + " %", euros(rc.Totals.Tax.StringFixed(2))},
		{"Total TTC", euros(rc.Totals.Total.StringFixed(2))},
	}
	for i, t := range totals {
		style := ""
		if i == len(totals)-1 {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(98, 6, tr(t[0]), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, tr(t[1]), "", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 8)
	paid := "Non réglé"
	if rc.Ticket.Paid {
		paid = "Réglé"
	}
	pdf.CellFormat(0, 4, tr(paid), "", 1, "L", false, 0, "")
	if rc.Ticket.Comment != "" {
		pdf.MultiCell(0, 4, tr(rc.Ticket.Comment), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("receipt: %w", err)
	}
	return buf.Bytes(), nil
}
