package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	fake := newFakeCalendar()
	r.Register("google", func(context.Context) (Calendar, error) {
		return fake, nil
	})

	cal, err := r.New(context.Background(), "google")
	require.NoError(t, err)
	assert.Same(t, Calendar(fake), cal)
	assert.Equal(t, []string{"google"}, r.Providers())
}

func TestRegistryUnknownProvider(t *testing.T) {
	r := NewRegistry()
	r.Register("google", func(context.Context) (Calendar, error) { return nil, nil })

	_, err := r.New(context.Background(), "outlook")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outlook")
	assert.Contains(t, err.Error(), "google")
}
