package store

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrument_RecordsErrorsAndConflicts(t *testing.T) {
	reg := prometheus.NewRegistry()
	observer, err := NewObserver("test", reg)
	require.NoError(t, err)

	mem := NewMemoryStore()
	handle := mem.Seed("m.json", []byte("{}"))
	s := Instrument(mem, observer)

	_, err = s.Get(t.Context(), "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Put(t.Context(), VersionedHandle{Path: "m.json", Version: "stale"}, []byte("{}"), "x")
	assert.ErrorIs(t, err, ErrVersionMismatch)

	_, err = s.Put(t.Context(), handle, []byte("{}"), "x")
	assert.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(observer.errors.WithLabelValues("get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(observer.errors.WithLabelValues("put")))
	assert.Equal(t, 1.0, testutil.ToFloat64(observer.conflicts))
	assert.Equal(t, 2, testutil.CollectAndCount(observer.duration))
}

func TestNewObserver_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewObserver("test", reg)
	require.NoError(t, err)
	second, err := NewObserver("test", reg)
	require.NoError(t, err)

	assert.Same(t, first.duration, second.duration)
}
