package system

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	name     string
	startErr error
	log      *[]string
}

func (f fakeService) Name() string { return f.name }

func (f fakeService) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.log = append(*f.log, "start "+f.name)
	return nil
}

func (f fakeService) Stop(context.Context) error {
	*f.log = append(*f.log, "stop "+f.name)
	return nil
}

func TestManagerOrder(t *testing.T) {
	var log []string
	m := NewManager()
	require.NoError(t, m.Register(fakeService{name: "jobs", log: &log}))
	require.NoError(t, m.Register(fakeService{name: "hub", log: &log}))
	assert.Error(t, m.Register(fakeService{name: "hub", log: &log}))
	assert.Equal(t, []string{"jobs", "hub"}, m.Names())

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Register(fakeService{name: "late", log: &log}))
	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, []string{"start jobs", "start hub", "stop hub", "stop jobs"}, log)
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	m := NewManager()
	require.NoError(t, m.Register(fakeService{name: "a", log: &log}))
	require.NoError(t, m.Register(fakeService{name: "b", startErr: boom, log: &log}))
	require.NoError(t, m.Register(fakeService{name: "c", log: &log}))

	err := m.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start a", "stop a"}, log)
}
