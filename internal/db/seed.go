package db

import (
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/utils"
)

var DefaultServiceTypes = []string{
	"child_care",
	"disability_care",
	"elderly_care",
	"newborn_care",
	"patient_care",
	"postpartum_care",
}

// SeedAdmin creates the first admin account. Missing credentials skip it.
func SeedAdmin(gdb *gorm.DB, email, password string, log *zap.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		log.Warn("skip seeding admin: missing ADMIN_EMAIL/ADMIN_PASSWORD")
		return nil
	}

	var count int64
	if err := gdb.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Info("admin already exists", zap.String("email", email))
		return nil
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	admin := models.User{
		Name:     "Admin",
		Email:    email,
		Password: hash,
		Role:     models.RoleAdmin,
		IsActive: true,
	}
	if err := gdb.Create(&admin).Error; err != nil {
		return err
	}
	log.Info("admin seeded", zap.String("email", email))
	return nil
}

// SeedServiceTypes makes sure the default tags exist.
func SeedServiceTypes(gdb *gorm.DB) error {
	for _, name := range DefaultServiceTypes {
		if err := gdb.FirstOrCreate(&models.ServiceType{}, models.ServiceType{Name: name}).Error; err != nil {
			return err
		}
	}
	return nil
}
