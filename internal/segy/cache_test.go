package segy_test

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/segyview/internal/segy"
	"example.com/segyview/internal/segytest"
)

func TestReaderCacheReuse(t *testing.T) {
	path := writeFile(t, segytest.File{Traces: [][]float64{segytest.Ramp(8)}})
	cache := segy.NewReaderCache()
	defer cache.Close()

	a, err := cache.Acquire(path)
	require.NoError(t, err)
	b, err := cache.Acquire(filepath.Join(filepath.Dir(path), ".", filepath.Base(path)))
	require.NoError(t, err)
	assert.Same(t, a, b)
	cache.Release(a)
	cache.Release(b)

	cached, ok := cache.Path()
	require.True(t, ok)
	assert.Equal(t, filepath.Clean(path), cached)
}

func TestReaderCacheEvictsAfterRelease(t *testing.T) {
	first := writeFile(t, segytest.File{Traces: [][]float64{segytest.Ramp(8)}})
	second := writeFile(t, segytest.File{Traces: [][]float64{segytest.Ramp(8), segytest.Ramp(8)}})
	cache := segy.NewReaderCache()
	defer cache.Close()

	old, err := cache.Acquire(first)
	require.NoError(t, err)

	replacement, err := cache.Acquire(second)
	require.NoError(t, err)
	assert.NotSame(t, old, replacement)

	// The evicted reader stays usable while held.
	_, err = old.LoadTrace(0, 0)
	require.NoError(t, err)

	cache.Release(old)
	_, err = old.LoadTrace(0, 0)
	assert.ErrorIs(t, err, segy.ErrIO)

	n, ok := replacement.TotalTraces()
	require.True(t, ok)
	assert.Equal(t, 2, n)
	cache.Release(replacement)
}

func TestReaderCacheClosesIdleReaderOnSwap(t *testing.T) {
	first := writeFile(t, segytest.File{Traces: [][]float64{segytest.Ramp(8)}})
	second := writeFile(t, segytest.File{Traces: [][]float64{segytest.Ramp(8)}})
	cache := segy.NewReaderCache()
	defer cache.Close()

	var old *segy.Reader
	require.NoError(t, cache.With(first, func(r *segy.Reader) error {
		old = r
		return nil
	}))
	require.NoError(t, cache.With(second, func(r *segy.Reader) error { return nil }))

	_, err := old.LoadTrace(0, 0)
	assert.ErrorIs(t, err, segy.ErrIO)
}

func TestReaderCacheErrors(t *testing.T) {
	cache := segy.NewReaderCache()
	_, err := cache.Acquire("")
	assert.ErrorIs(t, err, segy.ErrValidation)
	_, err = cache.Acquire(filepath.Join(t.TempDir(), "missing.sgy"))
	assert.ErrorIs(t, err, segy.ErrIO)
	_, ok := cache.Path()
	assert.False(t, ok)
}

func TestReaderCacheConcurrentReads(t *testing.T) {
	path := writeFile(t, segytest.File{Traces: [][]float64{segytest.Ramp(32), segytest.Ramp(32), segytest.Ramp(32)}})
	cache := segy.NewReaderCache()
	defer cache.Close()

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = cache.With(path, func(r *segy.Reader) error {
				_, err := r.LoadTraceDataRange(0, 3, 8)
				return err
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}
