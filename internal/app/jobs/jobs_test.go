package jobs

import (
	"context"
	"errors"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/travelties/service_layer/internal/config"
	"github.com/travelties/service_layer/pkg/logger"
)

type polls struct{ calls int }

func (p *polls) CloseExpired(context.Context) (int, error) {
	p.calls++
	return 2, nil
}

type uploads struct{ ttl time.Duration }

func (u *uploads) PurgeStale(_ context.Context, ttl time.Duration) (int, error) {
	u.ttl = ttl
	return 0, errors.New("bucket unavailable")
}

type limiter struct{ idle time.Duration }

func (l *limiter) Cleanup(maxIdle time.Duration) int {
	l.idle = maxIdle
	return 5
}

func quiet() *logger.Logger { return logger.NewWithWriter("jobs", io.Discard) }

func TestRegisterAndRunNow(t *testing.T) {
	s := New(time.Second, quiet())
	p, u, l := &polls{}, &uploads{}, &limiter{}
	cfg := config.JobsConfig{ClosePolls: "@every 1m", PurgeUploads: "@hourly", LimiterCleanup: "*/10 * * * *", PendingUploadTTL: 6 * time.Hour}
	require.NoError(t, Register(s, cfg, Deps{Polls: p, Uploads: u, Limiter: l}))

	names := s.Jobs()
	sort.Strings(names)
	assert.Equal(t, []string{ClosePolls, LimiterCleanup, PurgeUploads}, names)

	require.NoError(t, s.RunNow(ClosePolls))
	assert.Equal(t, 1, p.calls)
	assert.EqualError(t, s.RunNow(PurgeUploads), "bucket unavailable")
	assert.Equal(t, 6*time.Hour, u.ttl)
	require.NoError(t, s.RunNow(LimiterCleanup))
	assert.Equal(t, limiterIdle, l.idle)
	assert.Error(t, s.RunNow("missing"))
}

func TestEmptySpecDisablesJob(t *testing.T) {
	s := New(time.Second, quiet())
	require.NoError(t, Register(s, config.JobsConfig{ClosePolls: ""}, Deps{Polls: &polls{}}))
	assert.Empty(t, s.Jobs())
	assert.Error(t, s.RunNow(ClosePolls))
}

func TestInvalidSpec(t *testing.T) {
	s := New(time.Second, quiet())
	err := s.Add("bad", "every tuesday", func(context.Context) (int, error) { return 0, nil })
	assert.Error(t, err)
	require.NoError(t, s.Add("ok", "@daily", func(context.Context) (int, error) { return 0, nil }))
	assert.Error(t, s.Add("ok", "@daily", func(context.Context) (int, error) { return 0, nil }))
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(time.Second, quiet())
	ran := make(chan struct{}, 1)
	require.NoError(t, s.Add("tick", "@every 1s", func(context.Context) (int, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
		return 1, nil
	}))
	require.NoError(t, s.Start(context.Background()))
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
