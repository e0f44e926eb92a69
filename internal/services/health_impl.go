package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService implements the liveness and readiness probes
type HealthService struct {
	db        Pinger
	writeDirs []string
}

// NewHealthService creates a health service checking db and that each dir is writable
func NewHealthService(db Pinger, writeDirs ...string) *HealthService {
	return &HealthService{db: db, writeDirs: writeDirs}
}

// Healthz implements the liveness probe
func (h *HealthService) Healthz(ctx context.Context) error {
	return nil
}

// Readyz implements the readiness probe
func (h *HealthService) Readyz(ctx context.Context) error {
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			return fmt.Errorf("database not ready: %w", err)
		}
	}
	for _, dir := range h.writeDirs {
		f, err := os.CreateTemp(dir, ".ready-*")
		if err != nil {
			return fmt.Errorf("directory %s not writable: %w", filepath.Clean(dir), err)
		}
		name := f.Name()
		f.Close()
		os.Remove(name)
	}
	return nil
}
