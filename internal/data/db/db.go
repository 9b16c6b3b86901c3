package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// LedgerService owns the SQL connection of the submission ledger.
type LedgerService struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

func NewLedgerService(logg *logger.Logger, driver, dsn string) (*LedgerService, error) {
	serviceLog := logg.With("service", "LedgerService")
	driver = strings.ToLower(strings.TrimSpace(driver))
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("missing LEDGER_DSN")
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("invalid LEDGER_DRIVER=%q (allowed: %q, %q)", driver, DriverPostgres, DriverSQLite)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLog(serviceLog),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	serviceLog.Info("Ledger database connected", "driver", driver)
	return &LedgerService{db: db, driver: driver, log: serviceLog}, nil
}

func (s *LedgerService) DB() *gorm.DB { return s.db }

func (s *LedgerService) Driver() string { return s.driver }

func (s *LedgerService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
