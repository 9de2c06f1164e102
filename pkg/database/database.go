package database

import (
	"fmt"
	"learner_insight/internal/config"
	"learner_insight/internal/model"
	"learner_insight/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DBDriverSQLite:
		dialector = sqlite.Open(cfg.SQLitePath)
	case config.DBDriverMySQL, "":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=UTC",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == config.DBDriverSQLite {
		// sqlite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	logger.Log.Info("Database connection established", zap.String("driver", dialector.Name()))
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.LearnerProfile{},
		&model.SkillMastery{},
		&model.ActivityEvent{},
		&model.CandidateContentItem{},
		&model.Experience{},
		&model.ExperienceSession{},
		&model.Class{},
		&model.ClassEnrollment{},
	)
	if err != nil {
		return err
	}
	logger.Log.Info("Database migration completed")
	return nil
}

// Seed inserts a starter catalog into an empty database.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.CandidateContentItem{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		items := []model.CandidateContentItem{
			{ID: "lab-projectile", Title: "Projectile motion lab", Kind: model.ContentLab, TargetSkills: []string{"kinematics"}, Prerequisites: []string{"vectors"}, Difficulty: 0.4, Position: 1, Published: true},
			{ID: "lesson-vectors", Title: "Vectors refresher", Kind: model.ContentLesson, TargetSkills: []string{"vectors"}, Prerequisites: []string{}, Difficulty: 0.2, Position: 2, Published: true},
			{ID: "lab-lenses", Title: "Thin lens lab", Kind: model.ContentLab, TargetSkills: []string{"optics"}, Prerequisites: []string{"geometry"}, Difficulty: 0.5, Position: 3, Published: true},
			{ID: "eval-mechanics", Title: "Mechanics checkpoint", Kind: model.ContentEvaluation, TargetSkills: []string{"kinematics", "dynamics"}, Prerequisites: []string{"vectors"}, Difficulty: 0.6, Position: 4, Published: true},
			{ID: "cert-physics-1", Title: "Physics I certification", Kind: model.ContentCertification, TargetSkills: []string{"kinematics", "dynamics", "optics"}, Prerequisites: []string{"kinematics", "dynamics"}, Difficulty: 0.85, Position: 5, Published: true},
		}
		if err := db.Create(&items).Error; err != nil {
			return err
		}
	}

	var expCount int64
	if err := db.Model(&model.Experience{}).Count(&expCount).Error; err != nil {
		return err
	}
	if expCount == 0 {
		experiences := []model.Experience{
			{ID: "vlab-pendulum", Name: "Virtual pendulum", Kind: "virtual_lab"},
			{ID: "vlab-optics-bench", Name: "Optics bench", Kind: "virtual_lab"},
		}
		if err := db.Create(&experiences).Error; err != nil {
			return err
		}
	}
	return nil
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
