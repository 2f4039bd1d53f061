// Package periodic submits task templates to a scheduler on cron
// schedules.
package periodic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/azargarov/taskpool"
)

// Submitter is the slice of the scheduler the service needs.
// *taskpool.Scheduler satisfies it.
type Submitter interface {
	Submit(t taskpool.Task) (<-chan taskpool.Result, <-chan int, error)
}

// Config carries the optional service settings.
type Config struct {
	// Location sets the timezone schedules are evaluated in. Defaults
	// to time.Local.
	Location *time.Location
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Service owns a cron runner and a set of task templates. Every firing
// submits a copy of its template under a fresh ID, so consecutive
// firings never collide in the scheduler's in-flight registry. Results
// of periodic tasks are discarded; submit failures are logged.
type Service struct {
	cron *cron.Cron
	sub  Submitter
	log  *zap.Logger

	mu      sync.Mutex
	started bool
}

// New builds a stopped service. Schedule specs accept the five-field
// cron format, an optional leading seconds field, and descriptors such
// as "@every 30s" or "@hourly".
func New(sub Submitter, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	return &Service{
		cron: cron.New(cron.WithParser(parser), cron.WithLocation(cfg.Location)),
		sub:  sub,
		log:  cfg.Logger,
	}
}

// Add schedules template according to spec. The returned id can be
// passed to Remove. Adding to a running service takes effect on the
// next firing.
func (s *Service) Add(spec string, template taskpool.Task) (cron.EntryID, error) {
	if template.Execute == nil {
		return 0, taskpool.ErrNilExecute
	}
	id, err := s.cron.AddFunc(spec, func() { s.fire(template) })
	if err != nil {
		return 0, fmt.Errorf("periodic: add %q: %w", spec, err)
	}
	s.log.Debug("schedule added",
		zap.String("spec", spec),
		zap.String("type", template.Type))
	return id, nil
}

// Remove drops a schedule. Firings already submitted are unaffected.
func (s *Service) Remove(id cron.EntryID) { s.cron.Remove(id) }

// Start begins evaluating schedules. Calling Start on a running
// service is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.log.Warn("periodic service already running")
		return
	}
	s.started = true
	s.cron.Start()
	s.log.Info("periodic service started")
}

// Stop halts schedule evaluation and waits for in-flight firings to
// finish submitting, up to ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		s.log.Info("periodic service stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("periodic service stop cut short", zap.Error(ctx.Err()))
		return fmt.Errorf("periodic: stop: %w", ctx.Err())
	}
}

// fire submits one copy of template with a unique ID.
func (s *Service) fire(template taskpool.Task) {
	t := template
	if t.ID == "" {
		t.ID = uuid.NewString()
	} else {
		t.ID = t.ID + "@" + uuid.NewString()
	}

	if _, _, err := s.sub.Submit(t); err != nil {
		s.log.Warn("periodic submit failed",
			zap.String("id", t.ID),
			zap.Error(err))
		return
	}
	s.log.Debug("periodic task submitted",
		zap.String("id", t.ID),
		zap.String("type", t.Type))
}
