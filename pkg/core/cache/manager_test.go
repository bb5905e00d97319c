package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonUnmarshal(b []byte, out interface{}) error { return json.Unmarshal(b, out) }

func testManager(t *testing.T, ttls TTLs) *Manager {
	t.Helper()
	store, err := OpenStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	m := NewManager(store, ttls, zerolog.Nop())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func defaultTTLs() TTLs {
	return TTLs{
		Extraction: 7 * 24 * time.Hour,
		Valuation:  24 * time.Hour,
		Analysis:   7 * 24 * time.Hour,
		Price:      30 * time.Second,
	}
}

func TestManagerSetGetRoundTrip(t *testing.T) {
	m := testManager(t, defaultTTLs())

	require.NoError(t, m.Set("key1", StageValuation, []byte(`{"v":1}`)))

	payload, err := m.Get("key1")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(payload))

	miss, err := m.Get("absent")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestManagerSurvivesMemoryTierLoss(t *testing.T) {
	m := testManager(t, defaultTTLs())
	require.NoError(t, m.Set("key1", StageExtraction, []byte(`{"v":2}`)))

	// Simulate a cold memory tier; the disk store must still serve.
	m.memory.Del("key1")

	payload, err := m.Get("key1")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(payload))
}

func TestManagerTTLExpiry(t *testing.T) {
	ttls := defaultTTLs()
	ttls.Price = 10 * time.Millisecond
	m := testManager(t, ttls)

	require.NoError(t, m.Set("price-key", StagePrice, []byte(`{"p":1}`)))
	time.Sleep(30 * time.Millisecond)

	payload, err := m.Get("price-key")
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestManagerInvalidate(t *testing.T) {
	m := testManager(t, defaultTTLs())
	require.NoError(t, m.Set("key1", StageAnalysis, []byte(`{}`)))
	require.NoError(t, m.Invalidate("key1"))

	payload, err := m.Get("key1")
	require.NoError(t, err)
	assert.Nil(t, payload)

	// Invalidating an absent key is fine.
	require.NoError(t, m.Invalidate("key1"))
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	m := testManager(t, defaultTTLs())

	var calls atomic.Int32
	producer := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return []byte(`{"computed":true}`), nil
	}

	const concurrency = 16
	var wg sync.WaitGroup
	results := make([][]byte, concurrency)
	errs := make([]error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.GetOrCompute(context.Background(), "shared-key", StageExtraction, producer)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "exactly one producer run")
	for i := 0; i < concurrency; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, `{"computed":true}`, string(results[i]))
	}
}

func TestGetOrComputeCachesAcrossCalls(t *testing.T) {
	m := testManager(t, defaultTTLs())

	var calls atomic.Int32
	producer := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(`{"n":1}`), nil
	}

	for i := 0; i < 3; i++ {
		out, err := m.GetOrCompute(context.Background(), "key", StageValuation, producer)
		require.NoError(t, err)
		assert.Equal(t, `{"n":1}`, string(out))
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrComputeCancelledWaiterLeaderCompletes(t *testing.T) {
	m := testManager(t, defaultTTLs())

	started := make(chan struct{})
	producer := func(ctx context.Context) ([]byte, error) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		// The producer context is detached from the waiter's cancellation.
		assert.NoError(t, ctx.Err())
		return []byte(`{"done":true}`), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := m.GetOrCompute(ctx, "slow-key", StageAnalysis, producer)
	require.Error(t, err) // the waiter gave up

	// The leader still completed and populated the cache.
	assert.Eventually(t, func() bool {
		payload, err := m.Get("slow-key")
		return err == nil && payload != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenStore(dir, zerolog.Nop())
	require.NoError(t, err)
	m := NewManager(store, defaultTTLs(), zerolog.Nop())
	require.NoError(t, m.Set("persist", StageExtraction, []byte(`{"x":1}`)))
	require.NoError(t, m.Close())

	store2, err := OpenStore(dir, zerolog.Nop())
	require.NoError(t, err)
	m2 := NewManager(store2, defaultTTLs(), zerolog.Nop())
	defer m2.Close()

	payload, err := m2.Get("persist")
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(payload))
}
