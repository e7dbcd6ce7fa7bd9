package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomagicln/propbridge/internal/proptest"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Memory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func failure(property string, at time.Time) Failure {
	return Failure{
		Property:       property,
		Seed:           42,
		Size:           17,
		Tests:          3,
		Shrinks:        5,
		Counterexample: "data := NewSample(1001, 1, 1)",
		Cause:          "record 0 missing",
		RecordedAt:     at,
	}
}

func TestRecordAssignsIDAndTime(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	stored, err := s.Record(ctx, Failure{Property: "sum"})
	require.NoError(t, err)

	_, err = uuid.Parse(stored.ID)
	assert.NoError(t, err)
	assert.False(t, stored.RecordedAt.IsZero())
	assert.Equal(t, time.UTC, stored.RecordedAt.Location())
}

func TestRecordRequiresProperty(t *testing.T) {
	s := openMemory(t)
	_, err := s.Record(context.Background(), Failure{})
	assert.Error(t, err)
}

func TestRecordDuplicateID(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	f := failure("sum", time.Now())
	f.ID = "fixed"
	_, err := s.Record(ctx, f)
	require.NoError(t, err)
	_, err = s.Record(ctx, f)
	assert.Error(t, err)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListAndLatest(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	base := time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)

	first, err := s.Record(ctx, failure("sum", base))
	require.NoError(t, err)
	second, err := s.Record(ctx, failure("sum", base.Add(time.Minute)))
	require.NoError(t, err)
	_, err = s.Record(ctx, failure("order", base.Add(2*time.Minute)))
	require.NoError(t, err)

	sums, err := s.List(ctx, "sum")
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, second, sums[0])
	assert.Equal(t, first, sums[1])

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "order", all[0].Property)

	latest, err := s.Latest(ctx, "sum")
	require.NoError(t, err)
	assert.Equal(t, second, latest)

	_, err = s.Latest(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSearch(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	late := failure("lateness", time.Now())
	_, err := s.Record(ctx, late)
	require.NoError(t, err)

	other := failure("sum", time.Now())
	other.Counterexample = "data := 10"
	other.Cause = ""
	_, err = s.Record(ctx, other)
	require.NoError(t, err)

	found, err := s.Search(ctx, "NewSample")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "lateness", found[0].Property)

	found, err = s.Search(ctx, "property:sum")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "data := 10", found[0].Counterexample)

	found, err = s.Search(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDelete(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	f, err := s.Record(ctx, failure("sum", time.Now()))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, f.ID))
	assert.True(t, errors.Is(s.Delete(ctx, f.ID), ErrNotFound))

	found, err := s.Search(ctx, "NewSample")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestClear(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	for _, property := range []string{"sum", "sum", "order"} {
		_, err := s.Record(ctx, failure(property, time.Now()))
		require.NoError(t, err)
	}

	n, err := s.Clear(ctx, "sum")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Clear(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOpenFilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	stored, err := s.Record(ctx, failure("sum", time.Now()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	latest, err := s.Latest(ctx, "sum")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, latest.ID)
	assert.True(t, stored.RecordedAt.Equal(latest.RecordedAt))
}

func TestConcurrentRecord(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Record(ctx, failure("sum", time.Now()))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := s.List(ctx, "sum")
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestPropertyRecordedFailuresReadBack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property test in short mode")
	}

	s := openMemory(t)
	ctx := context.Background()
	properties := gopter.NewProperties(proptest.FastTestParameters())

	properties.Property("a recorded failure is listed unchanged", prop.ForAll(
		func(property string, seed int64, at time.Time, counterexample string) bool {
			stored, err := s.Record(ctx, Failure{
				Property:       property,
				Seed:           seed,
				Counterexample: counterexample,
				RecordedAt:     at,
			})
			if err != nil {
				return false
			}
			listed, err := s.List(ctx, property)
			if err != nil {
				return false
			}
			for _, f := range listed {
				if f.ID == stored.ID {
					return f.Seed == seed && f.Counterexample == counterexample && f.RecordedAt.Equal(at)
				}
			}
			return false
		},
		proptest.PropertyName(),
		proptest.Seed(),
		proptest.UTCTime(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
