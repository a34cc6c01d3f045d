package repomanager

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Scheduler runs Update against every tracked repository on a cron
// schedule. It is off by default (spec.md section 6's configuration
// surface has no periodic-refresh option); callers opt in explicitly,
// typically from the "system watch" command.
type Scheduler struct {
	manager *Manager
	cron    *cron.Cron
	onError func(org, repo string, err error)
}

// NewScheduler constructs a Scheduler bound to manager. onError may be
// nil; if set, it is called for every repository Update failure instead
// of the failure being silently dropped.
func NewScheduler(manager *Manager, onError func(org, repo string, err error)) *Scheduler {
	return &Scheduler{manager: manager, cron: cron.New(), onError: onError}
}

// Start registers a job that runs Update against every tracked
// repository on spec (a standard five-field cron expression, e.g.
// "0 */6 * * *" for every six hours) and begins running it in the
// background. Call Stop to end it.
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.runOnce(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop ends the scheduler and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	repos, err := s.manager.List(ctx)
	if err != nil {
		if s.onError != nil {
			s.onError("", "", err)
		}
		return
	}
	for _, r := range repos {
		if err := s.manager.Update(ctx, r.Org, r.Name); err != nil && s.onError != nil {
			s.onError(r.Org, r.Name, err)
		}
	}
}
