package app

import (
	"github.com/tvbeek/pdepend/internal/core/errors"
	"github.com/tvbeek/pdepend/internal/data/cache"
	"strings"
)

// Cache driver names accepted by NewCacheDriver.
const (
	CacheDriverMemory = "memory"
	CacheDriverFile   = "file"
	CacheDriverSQLite = "sqlite"
)

// NewCacheDriver opens the driver named by driver. path is the cache
// directory for "file" and the database file for "sqlite"; capacity bounds
// the "memory" driver.
func NewCacheDriver(driver, path string, capacity int) (cache.Driver, error) {
	switch strings.ToLower(driver) {
	case CacheDriverMemory:
		return cache.NewMemory(capacity), nil
	case CacheDriverFile, "":
		d, err := cache.NewFile(path)
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxPath, path)
		}
		return d, nil
	case CacheDriverSQLite:
		d, err := cache.OpenSQLite(path)
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxPath, path)
		}
		return d, nil
	default:
		return nil, errors.New(errors.CodeValidationError, "unknown cache driver: "+driver)
	}
}
