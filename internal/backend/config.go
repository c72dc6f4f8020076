package backend

import (
	"errors"
	"fmt"
	"time"

	"boletim/internal/config"
)

// BackendType selects where day records live.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// ParseBackendType accepts the DATA_BACKEND values.
func ParseBackendType(s string) (BackendType, error) {
	switch bt := BackendType(s); bt {
	case SQLiteBackend, MemoryBackend:
		return bt, nil
	default:
		return "", fmt.Errorf("invalid backend type %q: must be sqlite or memory", s)
	}
}

// Config is what the factory needs to build a backend.
type Config struct {
	Type         BackendType
	SQLiteDBPath string
	// DataDirectory holds the structure seed for both backends.
	DataDirectory string

	Sync  SyncConfig
	Cache CacheConfig
}

// SyncConfig points save notifications at a broker. Zero disables them and
// leaves days to the worker's sweep.
type SyncConfig struct {
	URL      string
	Exchange string
	Queue    string
}

func (s SyncConfig) Enabled() bool { return s.URL != "" }

// CacheConfig sizes the record cache of the sqlite backend. A zero size or
// TTL disables it.
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

func (c CacheConfig) Enabled() bool { return c.Size > 0 && c.TTL > 0 }

// FromAppConfig picks the backend settings out of the application config.
func FromAppConfig(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, errors.New("app config is nil")
	}
	bt, err := ParseBackendType(app.DataBackend)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Type:          bt,
		SQLiteDBPath:  app.SQLiteDBPath,
		DataDirectory: app.DataDir,
		Sync: SyncConfig{
			URL:      app.AMQPURL,
			Exchange: app.AMQPExchange,
			Queue:    app.AMQPQueue,
		},
		Cache: CacheConfig{Size: app.CacheSize, TTL: app.CacheTTL},
	}, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if _, err := ParseBackendType(string(c.Type)); err != nil {
		errs = append(errs, err)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		errs = append(errs, errors.New("sqlite backend needs a database path"))
	}
	if c.Sync.Enabled() && (c.Sync.Exchange == "" || c.Sync.Queue == "") {
		errs = append(errs, errors.New("sync needs both an exchange and a queue"))
	}
	if c.Cache.Size < 0 || c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("invalid cache size %d or ttl %s", c.Cache.Size, c.Cache.TTL))
	}
	return errors.Join(errs...)
}
