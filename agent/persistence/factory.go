package persistence

import (
	"fmt"

	"gorm.io/gorm"
)

// NewStore creates a Store based on the configuration. db is required only
// for the database backend.
func NewStore(config StoreConfig, db *gorm.DB) (Store, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case StoreTypeRedis:
		return NewRedisStore(config)
	case StoreTypeDatabase:
		if db == nil {
			return nil, fmt.Errorf("database store requires an open database connection")
		}
		return NewGormStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

// MustNewStore creates a new Store or panics on error.
//
// WARNING: This function should ONLY be used during application initialization.
// For runtime store creation, use NewStore instead.
func MustNewStore(config StoreConfig, db *gorm.DB) Store {
	store, err := NewStore(config, db)
	if err != nil {
		panic(fmt.Sprintf("failed to create store: %v", err))
	}
	return store
}
