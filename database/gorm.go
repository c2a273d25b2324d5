package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/sahilchouksey/ktu-notes-scraper/model"
)

// GORMStore is the PostgreSQL record store
type GORMStore struct {
	db *gorm.DB
}

// StartGORM initializes a GORM connection to PostgreSQL
func StartGORM(dsn string, goEnv string) (*GORMStore, error) {
	// Configure GORM logger
	gormLogger := logger.Default.LogMode(logger.Warn)
	if goEnv == "production" {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	// Open GORM connection
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true, // Prepare statements for better performance
	})
	if err != nil {
		log.Println("Unable to connect to PostgreSQL with GORM:", err)
		return nil, err
	}

	// Get underlying *sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Successfully connected to PostgreSQL Database with GORM.")

	return &GORMStore{db: db}, nil
}

// Init runs the AutoMigrate to create/update tables
func (s *GORMStore) Init() error {
	log.Println("Running GORM AutoMigrate for all models...")

	err := s.db.AutoMigrate(
		&model.Subject{},
		&model.NoteRecord{},
		&model.QuestionPaperRecord{},
		&model.ScrapeRun{},
	)
	if err != nil {
		log.Println("Error running AutoMigrate:", err)
		return err
	}

	log.Println("GORM AutoMigrate completed successfully!")
	return nil
}

// FindByField implements RecordStore
func (s *GORMStore) FindByField(ctx context.Context, collection model.Collection, field string, value interface{}) ([]model.Row, error) {
	if err := checkField(collection, field); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Table(string(collection)).
		Where(clause.Eq{Column: clause.Column{Name: field}, Value: value})
	if collection.HasColumn("created_at") {
		query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true})
	}

	var results []map[string]interface{}
	if err := query.Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}

	rows := make([]model.Row, len(results))
	for i, r := range results {
		rows[i] = model.Row(r)
	}
	return rows, nil
}

// Insert implements RecordStore
func (s *GORMStore) Insert(ctx context.Context, collection model.Collection, row model.Row) error {
	values, _, err := prepareRow(collection, row)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Table(string(collection)).Create(values).Error; err != nil {
		return fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return nil
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	log.Println("Closing GORM PostgreSQL connection...")
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck verifies the database connection is alive
func (s *GORMStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
