package services

import (
	"slices"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/atelier/internal/metrics"
	"github.com/diewo77/atelier/internal/models"
)

// DiffSupplies compares two supply id sets.
// removed = current − submitted, added = submitted − current; both sorted, duplicates ignored.
func DiffSupplies(current, submitted []uint) (removed, added []uint) {
	cur := make(map[uint]struct{}, len(current))
	for _, id := range current {
		cur[id] = struct{}{}
	}
	sub := make(map[uint]struct{}, len(submitted))
	for _, id := range submitted {
		sub[id] = struct{}{}
	}
	for id := range cur {
		if _, ok := sub[id]; !ok {
			removed = append(removed, id)
		}
	}
	for id := range sub {
		if _, ok := cur[id]; !ok {
			added = append(added, id)
		}
	}
	slices.Sort(removed)
	slices.Sort(added)
	return removed, added
}

type stockChange struct {
	reason   string
	ticketID *uint
	itemID   *uint
}

// returnToStock puts one unit back.
func returnToStock(tx *gorm.DB, supplyID uint, ch stockChange) error {
	var item models.SupplyItem
	if err := tx.First(&item, supplyID).Error; err != nil {
		return notFound(err)
	}
	if err := tx.Model(&models.SupplyItem{}).Where("id = ?", supplyID).
		Update("quantity", gorm.Expr("quantity + 1")).Error; err != nil {
		return err
	}
	return recordMovement(tx, item, 1, ch)
}

// consume takes one unit out of stock. The quantity never goes below zero through
// automatic bookkeeping: an item already at zero is left untouched and false is returned.
func consume(tx *gorm.DB, supplyID uint, ch stockChange, log *zap.Logger) (bool, error) {
	var item models.SupplyItem
	if err := tx.First(&item, supplyID).Error; err != nil {
		return false, notFound(err)
	}
	res := tx.Model(&models.SupplyItem{}).Where("id = ? AND quantity > 0", supplyID).
		Update("quantity", gorm.Expr("quantity - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		metrics.StockFloorHits.Inc()
		log.Warn("supply out of stock, decrement skipped",
			zap.Uint("supply_id", supplyID), zap.String("supply", item.Name), zap.String("reason", ch.reason))
		return false, nil
	}
	return true, recordMovement(tx, item, -1, ch)
}

func recordMovement(tx *gorm.DB, before models.SupplyItem, delta int, ch stockChange) error {
	mv := models.StockMovement{
		SupplyItemID: before.ID,
		Delta:        delta,
		Before:       before.Quantity,
		After:        before.Quantity + delta,
		Reason:       ch.reason,
		TicketID:     ch.ticketID,
		PricedItemID: ch.itemID,
	}
	if err := tx.Create(&mv).Error; err != nil {
		return err
	}
	metrics.StockMovements.WithLabelValues(ch.reason).Inc()
	return nil
}
