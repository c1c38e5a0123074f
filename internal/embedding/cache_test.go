package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestCacheEvictsOldest(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Set("c", []float32{3})

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry survived eviction")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("entry b evicted early")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("entry c missing")
	}
}

func TestCacheGetRefreshesRecency(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Get("a")
	c.Set("c", []float32{3})

	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry evicted")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry survived")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache(32)
	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, k := range keys {
		c.Set(k, []float32{1})
	}

	// Hits promote entries in the shared recency list, so concurrent Gets
	// exercise the same mutation path as Sets. Run with -race.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := keys[(g+i)%len(keys)]
				if g%2 == 0 {
					c.Get(k)
				} else {
					c.Set(k, []float32{float32(i)})
				}
			}
		}(g)
	}
	wg.Wait()

	for _, k := range keys {
		if _, ok := c.Get(k); !ok {
			t.Errorf("entry %q lost under concurrent access", k)
		}
	}
}

func TestCacheSetUpdatesInPlace(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("a", []float32{9})
	v, ok := c.Get("a")
	if !ok || v[0] != 9 {
		t.Errorf("got %v, want updated value", v)
	}
}

// countingEmbedder records how many texts reach the inner embedder.
type countingEmbedder struct {
	inner       Embedder
	singleCalls int
	batchTexts  int
	fail        bool
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, errors.New("embedder down")
	}
	e.singleCalls++
	return e.inner.Embed(ctx, text)
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.fail {
		return nil, errors.New("embedder down")
	}
	e.batchTexts += len(texts)
	return e.inner.EmbedBatch(ctx, texts)
}

func (e *countingEmbedder) Dimensions() int { return e.inner.Dimensions() }

func (e *countingEmbedder) Close() error { return nil }

func TestCachedEmbedSecondCallHitsCache(t *testing.T) {
	counter := &countingEmbedder{inner: NewMockEmbedder(16)}
	e := NewCachedEmbedder(counter, 10)
	ctx := context.Background()

	first, err := e.Embed(ctx, "revenue grew")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := e.Embed(ctx, "revenue grew")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if counter.singleCalls != 1 {
		t.Errorf("inner calls = %d, want 1", counter.singleCalls)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("cache returned a different vector")
		}
	}
}

func TestCachedEmbedBatchOnlyComputesMisses(t *testing.T) {
	counter := &countingEmbedder{inner: NewMockEmbedder(16)}
	e := NewCachedEmbedder(counter, 10)
	ctx := context.Background()

	if _, err := e.Embed(ctx, "cached already"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	out, err := e.EmbedBatch(ctx, []string{"cached already", "miss one", "miss two"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d vectors", len(out))
	}
	for i, v := range out {
		if len(v) != 16 {
			t.Errorf("vector %d has %d dims", i, len(v))
		}
	}
	if counter.batchTexts != 2 {
		t.Errorf("inner batch saw %d texts, want only the 2 misses", counter.batchTexts)
	}

	// All three are cached now; a repeat batch touches the inner embedder
	// not at all, even when it is down.
	counter.fail = true
	if _, err := e.EmbedBatch(ctx, []string{"cached already", "miss one", "miss two"}); err != nil {
		t.Errorf("fully cached batch should not hit the inner embedder: %v", err)
	}
}
