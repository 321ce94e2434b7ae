package db

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/atelier/internal/models"
)

type seedItem struct {
	name  string
	price string
}

type seedSub struct {
	name  string
	items []seedItem
}

type seedCategory struct {
	name string
	subs []seedSub
}

// priceGrid is the standard price list of the shop (prices in euros).
var priceGrid = []seedCategory{
	{"Pantalon", []seedSub{
		{"Ourlet", []seedItem{{"Ourlet simple", "9.00"}, {"Ourlet invisible", "11.00"}, {"Ourlet revers", "12.00"}, {"Supplément talonette", "2.00"}}},
		{"Taille & Côtés", []seedItem{{"Reprise taille/côté costume homme", "17.00"}, {"Elargir taille/côtés", "25.00"}, {"Reprise taille/côté", "23.00"}}},
		{"Fermeture", []seedItem{{"Changement fermeture", "18.00"}, {"Changement doublure", "30.00"}}},
		{"Réparation & Divers", []seedItem{{"Fuselage", "24.00"}, {"Fuselage demi", "16.00"}, {"Changement poche", "15.00"}}},
	}},
	{"Robe & Jupe", []seedSub{
		{"Ourlet", []seedItem{{"Ourlet piqué (sans doublure)", "19.00"}, {"Ourlet piqué (avec doublure)", "27.00"}, {"Ourlet invisible (sans doublure)", "22.00"}}},
		{"Taille & Côtés", []seedItem{{"Changement élastiques taille", "18.00"}, {"Reprendre/élargir la taille/côtés", "25.00"}, {"Reprendre/élargir les côtés + taille", "28.00"}}},
		{"Fermeture", []seedItem{{"Changement fermeture", "19.00"}, {"Changement doublure", "35.00"}}},
		{"Réparation & Divers", []seedItem{{"Reprise bretelles simple", "12.00"}, {"Reprise bretelles complexe", "18.00"}, {"Reprise épaules", "25.00"}}},
	}},
	{"Veste & Manteau", []seedSub{
		{"Manches", []seedItem{{"Bas manches simple (sans fente, bouton, doublure)", "17.00"}, {"Bas manches avec doublure / déplacement poignet", "20.00"}, {"Bas manches costume doublé", "25.00"}}},
		{"Ourlet Bas", []seedItem{{"Ourlet bas veste/manteau", "40.00"}}},
		{"Fermeture & Doublure", []seedItem{{"Changer fermeture", "42.00"}, {"Changer doublure (selon travail)", "85.00"}}},
		{"Reprise & Cintrâge", []seedItem{{"Reprise/cintrage sans doublure", "25.00"}, {"Reprise/cintrage avec doublure", "30.00"}}},
	}},
	{"Haut (Chemise, T-shirt)", []seedSub{
		{"Manches", []seedItem{{"Manches bas simple", "17.00"}, {"Manches bas avec poignet", "24.00"}}},
		{"Ourlet Bas", []seedItem{{"Ourlet bas", "17.00"}}},
		{"Reprise & Cintrâge", []seedItem{{"Reprise/cintrage T-shirt, Top", "16.00"}, {"Reprise/cintrage chemise sans doublure", "19.00"}, {"Reprise/cintrage chemise avec doublure", "23.00"}, {"Reprise épaule", "28.00"}}},
	}},
	{"Divers", []seedSub{
		{"Réparation", []seedItem{{"Accros", "8.00"}, {"Coudière", "16.00"}, {"Curseur", "7.00"}, {"Changement élastique taille", "17.00"}, {"Remplacement bouton, pression, crochet", "6.00"}, {"Pause ou retirer épaulettes", "16.00"}}},
		{"Confection & Spéciaux", []seedItem{{"Ourlet rideau/nappe", "15.00"}}},
	}},
}

// Seed loads the standard price grid. It is a no-op once any priced item exists
// and returns the number of priced items created.
func Seed(db *gorm.DB) (int, error) {
	var existing models.PricedItem
	err := db.Select("id").First(&existing).Error
	if err == nil {
		return 0, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	created := 0
	err = db.Transaction(func(tx *gorm.DB) error {
		for _, sc := range priceGrid {
			var cat models.Category
			if err := tx.Where("name = ?", sc.name).First(&cat).Error; errors.Is(err, gorm.ErrRecordNotFound) {
				cat = models.Category{Name: sc.name}
				if err := tx.Create(&cat).Error; err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
			for _, ss := range sc.subs {
				var sub models.Subcategory
				if err := tx.Where("name = ? AND category_id = ?", ss.name, cat.ID).First(&sub).Error; errors.Is(err, gorm.ErrRecordNotFound) {
					sub = models.Subcategory{Name: ss.name, CategoryID: cat.ID}
					if err := tx.Create(&sub).Error; err != nil {
						return err
					}
				} else if err != nil {
					return err
				}
				for _, si := range ss.items {
					item := models.PricedItem{
						Name:          si.name,
						Price:         decimal.NewNullDecimal(decimal.RequireFromString(si.price)),
						SubcategoryID: sub.ID,
					}
					if err := tx.Create(&item).Error; err != nil {
						return err
					}
					created++
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
