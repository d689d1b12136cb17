package health

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
)

// DefaultAlertThreshold is how long an integration may stay offline before
// Store logs a standing-downtime warning on every subsequent check.
const DefaultAlertThreshold = 2 * time.Minute

// Store is a thread-safe, in-memory holder of per-integration health state.
type Store struct {
	mu             sync.RWMutex
	state          map[string]IntegrationHealth
	alertThreshold time.Duration
	log            *logrus.Logger
}

// NewStore creates a Store with the default 2-minute alert threshold.
func NewStore(log *logrus.Logger) *Store {
	return NewStoreWithThreshold(DefaultAlertThreshold, log)
}

// NewStoreWithThreshold creates a Store with a custom downtime alert threshold.
func NewStoreWithThreshold(threshold time.Duration, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		state:          make(map[string]IntegrationHealth),
		alertThreshold: threshold,
		log:            log,
	}
}

// Update folds a new check result into the integration's rolling state.
// Online and Degraded both count as recovered: they clear downtime tracking
// and consecutive failure counts, since a degraded integration is still
// answering requests. Offline extends (or starts) downtime tracking and
// increments the consecutive failure count.
func (s *Store) Update(result CheckResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.state[result.Integration]
	if !ok {
		entry = NewIntegrationHealth(result.Integration)
	}

	previousStatus := entry.Status
	entry.LastCheck = result.CheckedAt
	entry.Status = result.Status
	entry.ResponseTimeMs = result.ResponseTimeMs
	entry.ErrorMessage = result.ErrorMessage

	switch result.Status {
	case StatusOnline:
		entry.LastSuccessfulCheck = &result.CheckedAt
		entry.ConsecutiveFailures = 0

		if entry.DowntimeStart != nil {
			downtime := time.Since(*entry.DowntimeStart)
			s.log.WithFields(logging.IntegrationFields("update", entry.Integration).
				Custom("downtime_seconds", int64(downtime.Seconds())).ToLogrus()).
				Info("integration recovered")
		}
		entry.DowntimeStart = nil

	case StatusDegraded:
		entry.LastSuccessfulCheck = &result.CheckedAt
		entry.ConsecutiveFailures = 0
		entry.DowntimeStart = nil

		fields := logging.IntegrationFields("update", entry.Integration)
		if entry.ResponseTimeMs != nil {
			fields = fields.Custom("response_time_ms", *entry.ResponseTimeMs)
		}
		if entry.ErrorMessage != nil {
			fields = fields.Custom("message", *entry.ErrorMessage)
		}
		s.log.WithFields(fields.ToLogrus()).Info("integration degraded")

	case StatusOffline:
		entry.ConsecutiveFailures++

		if entry.DowntimeStart == nil {
			now := time.Now()
			entry.DowntimeStart = &now
		}

		downtime := time.Since(*entry.DowntimeStart)
		if downtime > s.alertThreshold {
			fields := logging.IntegrationFields("update", entry.Integration).
				Custom("downtime_minutes", int64(downtime.Minutes())).
				Custom("consecutive_failures", entry.ConsecutiveFailures)
			if entry.ErrorMessage != nil {
				fields = fields.Error(errString(*entry.ErrorMessage))
			}
			s.log.WithFields(fields.ToLogrus()).Warn("integration has been offline beyond the alert threshold")
		}

		if previousStatus != StatusOffline {
			fields := logging.IntegrationFields("update", entry.Integration)
			if entry.ErrorMessage != nil {
				fields = fields.Error(errString(*entry.ErrorMessage))
			}
			s.log.WithFields(fields.ToLogrus()).Warn("integration went offline")
		}
	}

	s.state[result.Integration] = entry
}

// GetAll returns the current health state of every tracked integration.
func (s *Store) GetAll() []IntegrationHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]IntegrationHealth, 0, len(s.state))
	for _, h := range s.state {
		out = append(out, h)
	}
	return out
}

// Get returns the health state for a single integration, if tracked.
func (s *Store) Get(integration string) (IntegrationHealth, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.state[integration]
	return h, ok
}

// HasOffline reports whether any tracked integration is currently offline.
func (s *Store) HasOffline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, h := range s.state {
		if h.Status == StatusOffline {
			return true
		}
	}
	return false
}

// StatusCounts returns the number of tracked integrations in each state, in
// online, degraded, offline order.
func (s *Store) StatusCounts() (online, degraded, offline int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, h := range s.state {
		switch h.Status {
		case StatusOnline:
			online++
		case StatusDegraded:
			degraded++
		case StatusOffline:
			offline++
		}
	}
	return online, degraded, offline
}

type errString string

func (e errString) Error() string { return string(e) }
