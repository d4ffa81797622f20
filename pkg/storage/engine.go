package storage

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document is the row shape of every partition collection: an identifier plus
// a single opaque JSON field. Records of any shape fit; the storage layer never
// inspects the payload.
type Document struct {
	ID   string            `gorm:"primaryKey;column:id" json:"id"`
	Data datatypes.JSONMap `gorm:"column:data" json:"data"`
}

// CollectionEngine is the capability the Storage Router needs from the
// underlying document store: existence checks, creation, and inserts against
// named collections.
type CollectionEngine interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string) error
	Insert(ctx context.Context, name string, doc *Document) error
}

type postgresEngine struct {
	db *gorm.DB
}

// NewPostgresEngine backs collections with one physical table per collection
// name, each holding id + opaque jsonb data columns.
func NewPostgresEngine(db *gorm.DB) CollectionEngine {
	return &postgresEngine{db: db}
}

func (e *postgresEngine) HasCollection(ctx context.Context, name string) (bool, error) {
	return e.db.WithContext(ctx).Migrator().HasTable(name), nil
}

func (e *postgresEngine) CreateCollection(ctx context.Context, name string) error {
	err := e.db.WithContext(ctx).Table(name).AutoMigrate(&Document{})
	if err != nil {
		// Two workers may race to create the same partition; losing the race
		// is a no-op, not a failure.
		if e.db.WithContext(ctx).Table(name).Migrator().HasTable(name) {
			return nil
		}
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	return nil
}

func (e *postgresEngine) Insert(ctx context.Context, name string, doc *Document) error {
	if err := e.db.WithContext(ctx).Table(name).Create(doc).Error; err != nil {
		return fmt.Errorf("inserting into %s: %w", name, err)
	}
	return nil
}

// CollectionKey names the partition for a type and processing date. Raw
// concatenation, case preserved: types sharing a sanitized name are not
// deduplicated.
func CollectionKey(recordType, date string) string {
	return recordType + "_" + date
}
