package store

import (
	"gorm.io/gorm"

	"github.com/clubops/querycsv/internal/store/model"
)

type Store interface {
	Job() Job
	Document() Document
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db       *gorm.DB
	job      Job
	document Document
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:       db,
		job:      NewJobStore(db),
		document: NewDocumentStore(db),
	}
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) Document() Document {
	return s.document
}

// InitialMigration creates the tables via gorm. Postgres deployments run
// the SQL migrations instead; this path serves sqlite and tests.
func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(
		&model.UploadJob{},
		&model.Document{},
		&model.DocumentField{},
	)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
