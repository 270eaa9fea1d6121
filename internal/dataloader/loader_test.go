package dataloader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingBatchFn(calls *atomic.Int32) BatchFunc[string, string] {
	return func(ctx context.Context, keys []string) []Result[string] {
		calls.Add(1)
		results := make([]Result[string], len(keys))
		for i, k := range keys {
			results[i] = Result[string]{Value: "v:" + k}
		}
		return results
	}
}

func TestLoader_CoalescesConcurrentLoadsIntoOneBatch(t *testing.T) {
	var calls atomic.Int32
	loader := New(countingBatchFn(&calls), Config{Wait: 20 * time.Millisecond, MaxBatch: 1000})

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := loader.Load(context.Background(), "k1")
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "v:k1", r)
	}
	assert.Equal(t, int32(1), calls.Load(), "all concurrent loads of the same key should share one batch dispatch")
}

func TestLoader_DeduplicatesRepeatedKeyWithinBatch(t *testing.T) {
	var receivedKeys []string
	loader := New(BatchFunc[string, string](func(ctx context.Context, keys []string) []Result[string] {
		receivedKeys = append(receivedKeys, keys...)
		results := make([]Result[string], len(keys))
		for i, k := range keys {
			results[i] = Result[string]{Value: k}
		}
		return results
	}), Config{Wait: 10 * time.Millisecond, MaxBatch: 1000})

	results := loader.LoadMany(context.Background(), []string{"a", "b", "a", "c"})
	require.Len(t, results, 4)
	assert.Equal(t, []string{"a", "b", "a", "c"}, []string{results[0].Value, results[1].Value, results[2].Value, results[3].Value})
	assert.ElementsMatch(t, []string{"a", "b", "c"}, receivedKeys, "batch function should only see each distinct key once")
}

func TestLoader_SplitsOversizedBatchIntoChunks(t *testing.T) {
	var chunkSizes []int
	var mu sync.Mutex
	loader := New(BatchFunc[int, int](func(ctx context.Context, keys []int) []Result[int] {
		mu.Lock()
		chunkSizes = append(chunkSizes, len(keys))
		mu.Unlock()
		results := make([]Result[int], len(keys))
		for i, k := range keys {
			results[i] = Result[int]{Value: k * 2}
		}
		return results
	}), Config{Wait: 10 * time.Millisecond, MaxBatch: 3})

	keys := []int{1, 2, 3, 4, 5, 6, 7}
	results := loader.LoadMany(context.Background(), keys)

	require.Len(t, results, 7)
	for i, k := range keys {
		assert.Equal(t, k*2, results[i].Value)
	}
	assert.Len(t, chunkSizes, 3, "7 keys with MaxBatch=3 should split into ceil(7/3)=3 chunks")
}

func TestLoader_PerKeyErrorDoesNotFailOtherKeys(t *testing.T) {
	boom := errors.New("not found")
	loader := New(BatchFunc[string, string](func(ctx context.Context, keys []string) []Result[string] {
		results := make([]Result[string], len(keys))
		for i, k := range keys {
			if k == "missing" {
				results[i] = Result[string]{Err: boom}
				continue
			}
			results[i] = Result[string]{Value: k}
		}
		return results
	}), Config{Wait: 10 * time.Millisecond, MaxBatch: 10})

	results := loader.LoadMany(context.Background(), []string{"ok", "missing"})
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "ok", results[0].Value)
	assert.ErrorIs(t, results[1].Err, boom)
}

func TestLoader_FlushDispatchesImmediately(t *testing.T) {
	var calls atomic.Int32
	loader := New(countingBatchFn(&calls), Config{Wait: time.Hour, MaxBatch: 10})

	done := make(chan struct{})
	go func() {
		_, _ = loader.Load(context.Background(), "k1")
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	loader.Flush()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Load did not return after Flush")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoader_ContextCancellationUnblocksLoad(t *testing.T) {
	loader := New(BatchFunc[string, string](func(ctx context.Context, keys []string) []Result[string] {
		return make([]Result[string], len(keys))
	}), Config{Wait: time.Hour, MaxBatch: 10})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := loader.Load(ctx, "k1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
