package dbhelper

import (
	"log"

	"gorm.io/gorm"

	"stylemeapi/models"
)

func SetupCleaner(db *gorm.DB) func() {
	return func() {
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.LookGeneration{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.SavedLook{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.WardrobeItem{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.StyleProfile{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserPushToken{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserAccount{})
	}
}

func Migrate(db *gorm.DB, model interface{}) {
	err := db.AutoMigrate(model)
	if err != nil {
		log.Printf("Error while migrating %s", model)
		log.Fatal(err)
	}
}

// SeedStoreCatalog fills the store table on first boot so a fresh install has
// something to recommend before any partner feed is wired.
func SeedStoreCatalog(db *gorm.DB) {
	var count int64
	db.Model(&models.StoreProduct{}).Count(&count)
	if count > 0 {
		return
	}
	products := []models.StoreProduct{
		{Name: "Silk Slip Dress", Category: "Dresses", Brand: "Aurelle", Price: 189},
		{Name: "Tailored Wool Blazer", Category: "Jackets & Coats", Brand: "Form & Thread", Price: 249},
		{Name: "Leather Ankle Boots", Category: "Shoes", Brand: "Calle Nueve", Price: 159},
		{Name: "Gold Hoop Earrings", Category: "Accessories", Brand: "Mina Studio", Price: 79},
	}
	if err := db.Create(&products).Error; err != nil {
		log.Printf("Error seeding store catalog: %v", err)
	}
}
