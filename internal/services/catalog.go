package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/atelier/internal/models"
	"github.com/diewo77/atelier/internal/validation"
)

// CatalogService manages the price grid and the supply inventory.
type CatalogService struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewCatalogService(db *gorm.DB, log *zap.Logger) *CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{DB: db, Log: log}
}

// Tree returns every category with its subcategories, priced items and linked supplies.
func (s *CatalogService) Tree(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	err := s.DB.WithContext(ctx).
		Preload("Subcategories", func(db *gorm.DB) *gorm.DB { return db.Order("name asc") }).
		Preload("Subcategories.Items", func(db *gorm.DB) *gorm.DB { return db.Order("name asc") }).
		Preload("Subcategories.Items.Supplies").
		Order("name asc").
		Find(&cats).Error
	return cats, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Categories & subcategories
// ─────────────────────────────────────────────────────────────────────────────

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	return name, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	c := models.Category{Name: name}
	if err := s.DB.WithContext(ctx).Create(&c).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return &c, nil
}

func (s *CatalogService) RenameCategory(ctx context.Context, id uint, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCategory removes a category; the storage cascade removes its subcategories and priced items.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Category{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CatalogService) Subcategories(ctx context.Context, categoryID uint) ([]models.Subcategory, error) {
	var subs []models.Subcategory
	err := s.DB.WithContext(ctx).Where("category_id = ?", categoryID).Order("name asc").Find(&subs).Error
	return subs, err
}

func (s *CatalogService) CreateSubcategory(ctx context.Context, categoryID uint, name string) (*models.Subcategory, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	var cat models.Category
	if err := db.Select("id").First(&cat, categoryID).Error; err != nil {
		return nil, notFound(err)
	}
	sub := models.Subcategory{Name: name, CategoryID: cat.ID}
	if err := db.Create(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *CatalogService) RenameSubcategory(ctx context.Context, id uint, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Model(&models.Subcategory{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CatalogService) DeleteSubcategory(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Subcategory{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Priced items
// ─────────────────────────────────────────────────────────────────────────────

// ItemInput is the submitted form of a priced item. Price is raw user text ("12,50").
type ItemInput struct {
	Name          string
	Price         string
	SubcategoryID uint
	SupplyIDs     []uint
}

func (in ItemInput) validate() (string, decimal.NullDecimal, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return "", decimal.NullDecimal{}, err
	}
	v := validation.Violations{}
	price := validation.Price("price", in.Price, v)
	if !v.Empty() {
		return "", decimal.NullDecimal{}, fmt.Errorf("%w: %q", ErrInvalidPrice, in.Price)
	}
	return name, price, nil
}

// Items lists the priced items of a subcategory.
func (s *CatalogService) Items(ctx context.Context, subcategoryID uint) ([]models.PricedItem, error) {
	var items []models.PricedItem
	err := s.DB.WithContext(ctx).Where("subcategory_id = ?", subcategoryID).Order("name asc").Find(&items).Error
	return items, err
}

// AllItems lists every priced item with its parents, for ticket entry forms.
func (s *CatalogService) AllItems(ctx context.Context) ([]models.PricedItem, error) {
	var items []models.PricedItem
	err := s.DB.WithContext(ctx).
		Preload("Subcategory.Category").
		Joins("JOIN subcategories ON subcategories.id = priced_items.subcategory_id").
		Joins("JOIN categories ON categories.id = subcategories.category_id").
		Order("categories.name asc, subcategories.name asc, priced_items.name asc").
		Find(&items).Error
	return items, err
}

func (s *CatalogService) GetItem(ctx context.Context, id uint) (*models.PricedItem, error) {
	var item models.PricedItem
	if err := s.DB.WithContext(ctx).Preload("Supplies").Preload("Subcategory.Category").First(&item, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func loadSupplies(tx *gorm.DB, ids []uint) ([]models.SupplyItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var supplies []models.SupplyItem
	if err := tx.Where("id IN ?", ids).Find(&supplies).Error; err != nil {
		return nil, err
	}
	if len(supplies) != len(uniq(ids)) {
		return nil, fmt.Errorf("supply: %w", ErrNotFound)
	}
	return supplies, nil
}

func uniq(ids []uint) map[uint]struct{} {
	m := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

// CreateItem records a priced item and its supply links. Creating links does not touch stock.
func (s *CatalogService) CreateItem(ctx context.Context, in ItemInput) (*models.PricedItem, error) {
	name, price, err := in.validate()
	if err != nil {
		return nil, err
	}
	item := models.PricedItem{Name: name, Price: price, SubcategoryID: in.SubcategoryID}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub models.Subcategory
		if err := tx.Select("id").First(&sub, in.SubcategoryID).Error; err != nil {
			return notFound(err)
		}
		supplies, err := loadSupplies(tx, in.SupplyIDs)
		if err != nil {
			return err
		}
		item.Supplies = supplies
		return tx.Create(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// StockAdjustment reports what an item edit did to the inventory.
type StockAdjustment struct {
	Returned []uint `json:"returned"`
	Consumed []uint `json:"consumed"`
	Skipped  []uint `json:"skipped"`
}

// UpdateItem changes name, price, subcategory and supply links in one transaction.
// Each unlinked supply gets one unit back; each newly linked supply loses one unit
// unless it is already at zero. An invalid price aborts before anything is written.
func (s *CatalogService) UpdateItem(ctx context.Context, id uint, in ItemInput) (*StockAdjustment, error) {
	name, price, err := in.validate()
	if err != nil {
		return nil, err
	}
	adj := &StockAdjustment{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.PricedItem
		if err := tx.Preload("Supplies").First(&item, id).Error; err != nil {
			return notFound(err)
		}
		if in.SubcategoryID != 0 && in.SubcategoryID != item.SubcategoryID {
			var sub models.Subcategory
			if err := tx.Select("id").First(&sub, in.SubcategoryID).Error; err != nil {
				return notFound(err)
			}
			item.SubcategoryID = sub.ID
		}
		if _, err := loadSupplies(tx, in.SupplyIDs); err != nil {
			return err
		}

		removed, added := DiffSupplies(item.SupplyIDs(), in.SupplyIDs)
		ch := stockChange{itemID: &item.ID}
		for _, sid := range removed {
			ch.reason = models.MovementLinkRemoved
			if err := returnToStock(tx, sid, ch); err != nil {
				return err
			}
			adj.Returned = append(adj.Returned, sid)
		}
		for _, sid := range added {
			ch.reason = models.MovementLinkAdded
			ok, err := consume(tx, sid, ch, s.Log)
			if err != nil {
				return err
			}
			if ok {
				adj.Consumed = append(adj.Consumed, sid)
			} else {
				adj.Skipped = append(adj.Skipped, sid)
			}
		}

		if len(removed) > 0 {
			if err := tx.Exec("DELETE FROM priced_item_supplies WHERE priced_item_id = ? AND supply_item_id IN ?", item.ID, removed).Error; err != nil {
				return err
			}
		}
		for _, sid := range added {
			if err := tx.Exec("INSERT INTO priced_item_supplies (priced_item_id, supply_item_id) VALUES (?, ?)", item.ID, sid).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.PricedItem{}).Where("id = ?", item.ID).Updates(map[string]any{
			"name":           name,
			"price":          price,
			"subcategory_id": item.SubcategoryID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return adj, nil
}

// DeleteItem removes a priced item. Retouches keep their snapshot price and lose the link.
func (s *CatalogService) DeleteItem(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.PricedItem{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Supplies
// ─────────────────────────────────────────────────────────────────────────────

// SupplyInput is a direct supply edit. Quantity is taken as is, negative values included.
type SupplyInput struct {
	Reference string
	Name      string
	Color     string
	Quantity  int
}

// SupplyFilter narrows the inventory list.
type SupplyFilter struct {
	Query     string
	LowOnly   bool
	Threshold int
}

func (s *CatalogService) Supplies(ctx context.Context, f SupplyFilter) ([]models.SupplyItem, error) {
	q := s.DB.WithContext(ctx).Model(&models.SupplyItem{})
	if f.LowOnly {
		q = q.Where("quantity <= ?", f.Threshold)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("lower(name) LIKE ? OR lower(reference) LIKE ? OR lower(color) LIKE ?", like, like, like)
	}
	var items []models.SupplyItem
	err := q.Order("name asc, color asc").Find(&items).Error
	return items, err
}

func (s *CatalogService) GetSupply(ctx context.Context, id uint) (*models.SupplyItem, error) {
	var item models.SupplyItem
	if err := s.DB.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (s *CatalogService) CreateSupply(ctx context.Context, in SupplyInput) (*models.SupplyItem, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	item := models.SupplyItem{
		Reference: strings.TrimSpace(in.Reference),
		Name:      name,
		Color:     strings.TrimSpace(in.Color),
		Quantity:  in.Quantity,
	}
	if err := s.DB.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *CatalogService) UpdateSupply(ctx context.Context, id uint, in SupplyInput) error {
	name, err := cleanName(in.Name)
	if err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Model(&models.SupplyItem{}).Where("id = ?", id).Updates(map[string]any{
		"reference": strings.TrimSpace(in.Reference),
		"name":      name,
		"color":     strings.TrimSpace(in.Color),
		"quantity":  in.Quantity,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSupply removes a supply; its links and movements go with it.
func (s *CatalogService) DeleteSupply(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.SupplyItem{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Movements returns the stock history of a supply, newest first.
func (s *CatalogService) Movements(ctx context.Context, supplyID uint) ([]models.StockMovement, error) {
	if _, err := s.GetSupply(ctx, supplyID); err != nil {
		return nil, err
	}
	var mv []models.StockMovement
	err := s.DB.WithContext(ctx).Where("supply_item_id = ?", supplyID).Order("id desc").Find(&mv).Error
	return mv, err
}
