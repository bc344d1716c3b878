package database

import (
	"backoffice-service/internal/model"
	"backoffice-service/pkg/config"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// InitDB initializes the database connection and runs migrations
func InitDB(cfg *config.Config) error {
	var err error

	// PreferSimpleProtocol disables implicit prepared statement usage,
	// preventing "prepared statement already exists" errors behind poolers
	pgConfig := postgres.Config{
		DSN:                  cfg.DB.GetDSN(),
		PreferSimpleProtocol: true,
	}

	// TranslateError lets handlers map unique-index violations to 409
	// via gorm.ErrDuplicatedKey
	DB, err = gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger:         logger.Default.LogMode(cfg.DB.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return err
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	if cfg.DB.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	}
	if cfg.DB.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}
	if cfg.DB.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	}

	if err := Migrate(DB); err != nil {
		return err
	}

	return Seed(DB, &cfg.Seed)
}

// Migrate creates or updates the table structure for all models
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Tenant{},
		&model.User{},
		&model.Project{},
		&model.Task{},
		&model.AuditLog{},
	)
}

// Seed creates the system tenant and the super admin user if absent.
// The health endpoint treats the store as "initializing" until the super
// admin row exists.
func Seed(db *gorm.DB, seed *config.SeedConfig) error {
	var count int64
	if err := db.Model(&model.User{}).Where("role = ?", model.RoleSuperAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		tenant := model.Tenant{
			Name:             "System",
			Subdomain:        "system",
			Status:           "active",
			SubscriptionPlan: model.DefaultSubscriptionPlan,
			MaxUsers:         model.DefaultMaxUsers,
			MaxProjects:      model.DefaultMaxProjects,
		}
		if err := tx.Where("subdomain = ?", tenant.Subdomain).FirstOrCreate(&tenant).Error; err != nil {
			return err
		}

		admin := model.User{
			TenantID:     tenant.ID,
			Email:        seed.AdminEmail,
			FullName:     "Super Admin",
			PasswordHash: string(hash),
			Role:         model.RoleSuperAdmin,
			IsActive:     true,
		}
		return tx.Create(&admin).Error
	})
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
