// Package health is the liveness probe (C9): a round-trip check against the
// persistence backend, reported alongside build version and timestamp.
package health

import (
	"time"

	"github.com/groundx/refillsvc/log"
)

var logger = log.NewModuleLogger(log.Health)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Report is the §4.9 response shape.
type Report struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
}

// Pinger is the slice of catalog.Store the health probe needs.
type Pinger interface {
	Ping() error
}

// Checker probes the persistence backend.
type Checker struct {
	Store   Pinger
	Version string
}

func New(store Pinger, version string) *Checker {
	return &Checker{Store: store, Version: version}
}

// Check performs the round-trip probe.
func (c *Checker) Check() Report {
	services := map[string]string{"api": StatusHealthy}

	if err := c.Store.Ping(); err != nil {
		logger.Error("database health probe failed", "err", err)
		services["database"] = StatusUnhealthy
		return Report{
			Status:    StatusUnhealthy,
			Services:  services,
			Version:   c.Version,
			Timestamp: time.Now(),
		}
	}

	services["database"] = StatusHealthy
	return Report{
		Status:    StatusHealthy,
		Services:  services,
		Version:   c.Version,
		Timestamp: time.Now(),
	}
}
