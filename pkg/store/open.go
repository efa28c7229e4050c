package store

import (
	"github.com/cashlia/cashlia-core/pkg/config"
	"github.com/cashlia/cashlia-core/pkg/errors"
)

// Open builds the backend selected by the configuration.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.StoreDriverDocument:
		return NewDocumentStore(cfg.DocumentDir)
	case config.StoreDriverSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, errors.New(errors.CodeConfiguration, "unknown store driver "+cfg.Driver)
	}
}
