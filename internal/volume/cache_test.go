package volume

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func countingLoader(calls *int32) LoaderFunc {
	return func(path string) (*Image, error) {
		atomic.AddInt32(calls, 1)
		if path == "missing" {
			return nil, errors.New("no such file")
		}
		return New([]int{4, 4}, UInt8)
	}
}

func TestCache_Load(t *testing.T) {
	var calls int32
	cache := NewCache(countingLoader(&calls))

	img1, err := cache.Load("a.mha")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	img2, err := cache.Load("a.mha")
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}
}

func TestCache_Load_Error(t *testing.T) {
	var calls int32
	cache := NewCache(countingLoader(&calls))
	if _, err := cache.Load("missing"); err == nil {
		t.Error("Load should fail when the loader fails")
	}
	if cache.Len() != 0 {
		t.Errorf("failed load was cached: %d entries", cache.Len())
	}
}

func TestCache_EvictAndClear(t *testing.T) {
	var calls int32
	cache := NewCache(countingLoader(&calls))
	for _, p := range []string{"a", "b", "c"} {
		if _, err := cache.Load(p); err != nil {
			t.Fatalf("Load(%s) failed: %v", p, err)
		}
	}

	cache.Evict("a")
	cache.Evict("nonexistent")
	if cache.Len() != 2 {
		t.Errorf("after Evict: %d entries, want 2", cache.Len())
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Clear did not empty cache: %d images remain", cache.Len())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	var calls int32
	cache := NewCache(countingLoader(&calls))

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load("shared"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Load error: %v", err)
	}
	if cache.Len() != 1 {
		t.Errorf("cache has %d entries, want 1", cache.Len())
	}
}
