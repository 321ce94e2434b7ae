package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/atelier/internal/models"
)

// RejectedRow is an import line that could not be used.
type RejectedRow struct {
	Line   int      `json:"line"`
	Cells  []string `json:"cells"`
	Reason string   `json:"reason"`
}

// ImportReport summarizes a supply import.
type ImportReport struct {
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Skipped []RejectedRow `json:"skipped"`
}

// supplyRow turns one record into a supply. Empty cells are dropped first; the first
// four remaining cells are reference, name, color and quantity.
func supplyRow(line int, record []string) (SupplyInput, *RejectedRow) {
	cells := make([]string, 0, len(record))
	for _, c := range record {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	if len(cells) < 4 {
		return SupplyInput{}, &RejectedRow{Line: line, Cells: cells, Reason: "not_enough_columns"}
	}
	qty, err := strconv.Atoi(strings.ReplaceAll(cells[3], " ", ""))
	if err != nil {
		return SupplyInput{}, &RejectedRow{Line: line, Cells: cells, Reason: "invalid_quantity"}
	}
	return SupplyInput{Reference: cells[0], Name: cells[1], Color: cells[2], Quantity: qty}, nil
}

// ParseDelimited reads ";"-separated supply rows. The first line is a header.
func ParseDelimited(r io.Reader) ([]SupplyInput, []RejectedRow, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var rows []SupplyInput
	var rejected []RejectedRow
	line := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read line %d: %w", line+1, err)
		}
		line++
		if line == 1 {
			continue
		}
		in, rej := supplyRow(line, record)
		if rej != nil {
			rejected = append(rejected, *rej)
			continue
		}
		rows = append(rows, in)
	}
	return rows, rejected, nil
}

// ParseXLSX reads supply rows from the first sheet of a workbook. The first row is a header.
func ParseXLSX(r io.Reader) ([]SupplyInput, []RejectedRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("workbook has no sheet")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	var rows []SupplyInput
	var rejected []RejectedRow
	for i, record := range records {
		if i == 0 {
			continue
		}
		in, rej := supplyRow(i+1, record)
		if rej != nil {
			if len(rej.Cells) == 0 {
				continue
			}
			rejected = append(rejected, *rej)
			continue
		}
		rows = append(rows, in)
	}
	return rows, rejected, nil
}

// ImportSupplies upserts rows by reference in one transaction: a known reference is
// updated in place, anything else is created.
func (s *CatalogService) ImportSupplies(ctx context.Context, rows []SupplyInput) (*ImportReport, error) {
	rep := &ImportReport{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, in := range rows {
			ref := strings.TrimSpace(in.Reference)
			var existing models.SupplyItem
			err := tx.Where("reference = ?", ref).First(&existing).Error
			switch {
			case err == nil:
				if err := tx.Model(&models.SupplyItem{}).Where("id = ?", existing.ID).Updates(map[string]any{
					"name":     strings.TrimSpace(in.Name),
					"color":    strings.TrimSpace(in.Color),
					"quantity": in.Quantity,
				}).Error; err != nil {
					return err
				}
				rep.Updated++
			case errors.Is(err, gorm.ErrRecordNotFound):
				item := models.SupplyItem{
					Reference: ref,
					Name:      strings.TrimSpace(in.Name),
					Color:     strings.TrimSpace(in.Color),
					Quantity:  in.Quantity,
				}
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
				rep.Created++
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("supplies imported", zap.Int("created", rep.Created), zap.Int("updated", rep.Updated))
	return rep, nil
}

// ImportFile parses data by format ("xlsx" or delimited text) and imports it.
// Rejected rows are reported and logged, never fatal.
func (s *CatalogService) ImportFile(ctx context.Context, name string, data []byte) (*ImportReport, error) {
	parse := ParseDelimited
	if strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		parse = ParseXLSX
	}
	rows, rejected, err := parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	rep, err := s.ImportSupplies(ctx, rows)
	if err != nil {
		return nil, err
	}
	rep.Skipped = rejected
	for _, r := range rejected {
		s.Log.Warn("import row skipped", zap.Int("line", r.Line), zap.String("reason", r.Reason), zap.Strings("cells", r.Cells))
	}
	return rep, nil
}

// ExportSuppliesXLSX writes the whole inventory to a workbook.
func (s *CatalogService) ExportSuppliesXLSX(ctx context.Context) ([]byte, error) {
	items, err := s.Supplies(ctx, SupplyFilter{})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := "Fournitures"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headers := []string{"Référence", "Nom", "Couleur", "Quantité"}
	for c, v := range headers {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for i, it := range items {
		row := i + 2
		values := []any{it.Reference, it.Name, it.Color, it.Quantity}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 16)
	_ = f.SetColWidth(sheet, "B", "B", 32)
	_ = f.SetColWidth(sheet, "C", "C", 16)
	_ = f.SetColWidth(sheet, "D", "D", 10)
	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = f.SetCellStyle(sheet, "A1", "D1", style)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
