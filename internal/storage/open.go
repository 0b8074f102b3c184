package storage

import (
	"errors"
	"strings"

	logx "routined/pkg/logx"
)

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "none" {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage.path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	var (
		b   backend
		err error
	)
	switch driver {
	case "", "file":
		driver = "file"
		b, err = openFile(cfg)
	case "diskv":
		b, err = openDiskv(cfg)
	case "sqlite", "sqlite3":
		driver = "sqlite"
		b, err = openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
	if err != nil {
		return nil, err
	}
	log.Debug("storage opened", logx.String("driver", driver), logx.String("path", cfg.Path))
	return &Store{b: b, log: log, driver: driver}, nil
}
