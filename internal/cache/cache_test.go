package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"wpx-extend/internal/metrics"
)

type counter struct{ calls int }

func (c *counter) compute(v []string) func(context.Context) ([]string, error) {
	return func(context.Context) ([]string, error) {
		c.calls++
		return v, nil
	}
}

func TestGetOrCompute_HitAfterMiss(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryBackend())
	var n counter

	for i := 0; i < 3; i++ {
		got, err := GetOrCompute(ctx, c, "wpx_cpts", n.compute([]string{"book", "movie"}))
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"book", "movie"}, got); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	}
	if n.calls != 1 {
		t.Fatalf("compute called %d times, want 1", n.calls)
	}
}

func TestGetOrCompute_RecordsKeys(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryBackend())
	var n counter

	_, _ = GetOrCompute(ctx, c, "a", n.compute(nil))
	_, _ = GetOrCompute(ctx, c, "b", n.compute(nil))
	_, _ = GetOrCompute(ctx, c, "a", n.compute(nil))

	if diff := cmp.Diff([]string{"a", "b"}, c.Registry().DrainAndClear()); diff != "" {
		t.Fatalf("recorded keys mismatch (-want +got):\n%s", diff)
	}
	if c.Registry().Len() != 0 {
		t.Fatal("expected registry to be empty after drain")
	}
}

func TestInvalidateAll_ForcesRecompute(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryBackend())
	var n counter

	keys := []string{"wpx_cpts", "wpx_cpts_attributes_1", "wpx_fields_9"}
	for _, k := range keys {
		_, _ = GetOrCompute(ctx, c, k, n.compute([]string{k}))
	}
	if err := c.InvalidateAll(ctx, keys); err != nil {
		t.Fatal(err)
	}
	for _, k := range keys {
		_, _ = GetOrCompute(ctx, c, k, n.compute([]string{k}))
	}
	if n.calls != 2*len(keys) {
		t.Fatalf("compute called %d times, want %d", n.calls, 2*len(keys))
	}
}

func TestFlush_ClearsEverythingRecorded(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := New(backend)
	defs := c.Definitions()
	var n counter

	_, _ = GetOrCompute(ctx, c, "wpx_groups_1", n.compute(nil))
	_, _ = GetOrCompute(ctx, defs, "wpx_taxonomies", n.compute(nil))

	removed, err := c.Flush(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Fatalf("removed %d keys, want 2", removed)
	}
	if backend.Len() != 0 {
		t.Fatalf("expected empty backend, %d entries left", backend.Len())
	}
}

// sharedBackend stands in for a backend another process also writes to.
type sharedBackend struct{ *MemoryBackend }

func (b *sharedBackend) Purge(context.Context) (int, error) {
	n := b.Len()
	b.mu.Lock()
	b.entries = make(map[string]memoryEntry)
	b.mu.Unlock()
	return n, nil
}

func TestFlush_PurgesSharedBackends(t *testing.T) {
	ctx := context.Background()
	backend := &sharedBackend{NewMemoryBackend()}
	_ = backend.Set(ctx, "wpx_cpts", []byte(`[]`), time.Time{})
	c := New(backend)

	removed, err := c.Flush(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 || backend.Len() != 0 {
		t.Fatalf("removed %d, %d left; keys written elsewhere must be purged", removed, backend.Len())
	}
}

func TestDefinitions_BypassedUnderMultisite(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := New(backend, WithMultisite(true))
	var n counter

	for i := 0; i < 3; i++ {
		_, _ = GetOrCompute(ctx, c.Definitions(), "wpx_cpts", n.compute([]string{"book"}))
	}
	if n.calls != 3 {
		t.Fatalf("compute called %d times, want 3", n.calls)
	}
	if backend.Len() != 0 || c.Registry().Len() != 0 {
		t.Fatal("bypassed lookups must not touch the backend or registry")
	}

	// Non-definition lookups stay cached.
	_, _ = GetOrCompute(ctx, c, "wpx_fields_1", n.compute(nil))
	_, _ = GetOrCompute(ctx, c, "wpx_fields_1", n.compute(nil))
	if n.calls != 4 {
		t.Fatalf("compute called %d times, want 4", n.calls)
	}
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryBackend())
	boom := errors.New("store down")

	_, err := GetOrCompute(ctx, c, "k", func(context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	got, err := GetOrCompute(ctx, c, "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("expected recompute to 7, got %d, %v", got, err)
	}
}

func TestGetOrCompute_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	backend := NewMemoryBackend()
	backend.now = clock
	c := New(backend, WithTTL(time.Hour), WithClock(clock))
	var n counter

	_, _ = GetOrCompute(ctx, c, "k", n.compute(nil))
	now = now.Add(59 * time.Minute)
	_, _ = GetOrCompute(ctx, c, "k", n.compute(nil))
	if n.calls != 1 {
		t.Fatalf("expected cached value before expiry, calls=%d", n.calls)
	}
	now = now.Add(2 * time.Minute)
	_, _ = GetOrCompute(ctx, c, "k", n.compute(nil))
	if n.calls != 2 {
		t.Fatalf("expected recompute after expiry, calls=%d", n.calls)
	}
}

func TestMemoryBackend_KeepsEntryReplacedDuringExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	backend := NewMemoryBackend()
	_ = backend.Set(ctx, "k", []byte("old"), now.Add(time.Minute))

	// The first clock read happens after the read lock is released; a
	// concurrent writer stores a fresh entry at that point.
	replaced := false
	backend.now = func() time.Time {
		if !replaced {
			replaced = true
			_ = backend.Set(ctx, "k", []byte("new"), now.Add(time.Hour))
		}
		return now.Add(2 * time.Minute)
	}

	got, ok, err := backend.Get(ctx, "k")
	if err != nil || !ok || string(got) != "new" {
		t.Fatalf("Get = %q, %v, %v; want the replaced entry", got, ok, err)
	}
	if backend.Len() != 1 {
		t.Fatal("replaced entry was deleted")
	}
}

type failingBackend struct{ *MemoryBackend }

func (f *failingBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("read failed")
}

func (f *failingBackend) Delete(context.Context, ...string) error {
	return errors.New("delete failed")
}

func TestGetOrCompute_BackendFailureDegrades(t *testing.T) {
	ctx := context.Background()
	c := New(&failingBackend{MemoryBackend: NewMemoryBackend()})

	got, err := GetOrCompute(ctx, c, "k", func(context.Context) (string, error) { return "v", nil })
	if err != nil || got != "v" {
		t.Fatalf("expected computed value, got %q, %v", got, err)
	}

	if _, err := c.Flush(ctx); err == nil {
		t.Fatal("expected flush to report the delete failure")
	}
	if c.Registry().Len() != 1 {
		t.Fatal("expected keys to be kept for a later flush")
	}
}

func TestCache_Metrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	c := New(NewMemoryBackend(), WithMetrics(m), WithMultisite(true))
	var n counter

	_, _ = GetOrCompute(ctx, c, "k", n.compute(nil))
	_, _ = GetOrCompute(ctx, c, "k", n.compute(nil))
	_, _ = GetOrCompute(ctx, c.Definitions(), "d", n.compute(nil))

	for result, want := range map[string]float64{metrics.ResultHit: 1, metrics.ResultMiss: 1, metrics.ResultBypass: 1} {
		if got := testutil.ToFloat64(m.CacheRequestsTotal.WithLabelValues(result)); got != want {
			t.Errorf("%s = %v, want %v", result, got, want)
		}
	}
}
