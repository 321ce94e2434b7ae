package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/atelier/internal/db"
	"github.com/diewo77/atelier/internal/services"
)

func runSeed(conn *gorm.DB, log *zap.Logger) error {
	created, err := db.Seed(conn)
	if err != nil {
		return err
	}
	log.Info("seed completed", zap.Int("items", created))
	return nil
}

func runConvertPrices(ctx context.Context, tickets *services.TicketService, log *zap.Logger) error {
	res, err := tickets.ConvertPricesToHT(ctx)
	if err != nil {
		return err
	}
	log.Info("prices converted to pre-tax",
		zap.Int("retouches", res.Retouches), zap.Int("catalog_items", res.CatalogItems))
	return nil
}

func runImportInventory(ctx context.Context, catalog *services.CatalogService, path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rep, err := catalog.ImportFile(ctx, path, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d created, %d updated, %d skipped\n", rep.Created, rep.Updated, len(rep.Skipped))
	for _, r := range rep.Skipped {
		fmt.Fprintf(out, "  line %d: %s %v\n", r.Line, r.Reason, r.Cells)
	}
	return nil
}

func runCheckInventory(ctx context.Context, catalog *services.CatalogService, out io.Writer) error {
	items, err := catalog.Supplies(ctx, services.SupplyFilter{})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "no supplies in the database")
		return nil
	}
	fmt.Fprintf(out, "%d supplies\n", len(items))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REFERENCE\tNAME\tCOLOR\tQUANTITY")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", it.Reference, it.Name, it.Color, it.Quantity)
	}
	return tw.Flush()
}
