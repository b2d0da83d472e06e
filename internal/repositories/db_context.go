package repositories

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

type DbContext struct {
	DB *gorm.DB
}

func NewDbContext(driver, connectionString string) (*DbContext, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSqlite, "":
		dialector = sqlite.Open(connectionString)
	case DriverPostgres:
		dialector = postgres.Open(connectionString)
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Error),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	return &DbContext{DB: db}, nil
}

func (c *DbContext) Migrate() error {
	models := []struct {
		name  string
		model any
	}{
		{"Profession", &entities.Profession{}},
		{"Keyword", &entities.Keyword{}},
		{"StopWord", &entities.StopWord{}},
		{"User", &entities.User{}},
		{"UserProfession", &entities.UserProfession{}},
		{"Vacancy", &entities.Vacancy{}},
		{"VacancyProfession", &entities.VacancyProfession{}},
		{"SentVacancy", &entities.SentVacancy{}},
		{"BacklogEntry", &entities.BacklogEntry{}},
		{"ArbitraryData", &entities.ArbitraryData{}},
	}

	for _, m := range models {
		if err := c.DB.AutoMigrate(m.model); err != nil {
			return fmt.Errorf("failed to migrate %s entity: %w", m.name, err)
		}
	}

	if err := c.DB.Exec("CREATE INDEX IF NOT EXISTS idx_backlog_pending ON backlog_entries (kind, user_id, is_sent)").
		Error; err != nil {
		return fmt.Errorf("failed to create backlog index: %w", err)
	}

	return nil
}

func (c *DbContext) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
