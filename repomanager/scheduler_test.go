package repomanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchedulerRunOnceUpdatesEveryTrackedRepository(t *testing.T) {
	upstream := newUpstream(t)
	mgr := newManager(t)

	_, err := mgr.Add(context.Background(), "acme", "widgets", upstream)
	require.NoError(t, err)

	var failed []string
	sched := NewScheduler(mgr, func(org, repo string, err error) {
		failed = append(failed, org+"/"+repo)
	})
	sched.runOnce(context.Background())

	require.Empty(t, failed)
}

func TestSchedulerStartRejectsInvalidCronExpression(t *testing.T) {
	mgr := newManager(t)
	sched := NewScheduler(mgr, nil)
	err := sched.Start("not a cron expression")
	require.Error(t, err)
}
