package validator

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"nocturne/internal/persona"
)

func TestKey_Distinguishes(t *testing.T) {
	base := Key("hello", ContextFragment, "a1")
	if Key("hello", ContextFragment, "a1") != base {
		t.Error("key must be stable")
	}
	if Key("hello", ContextMenu, "a1") == base {
		t.Error("context must affect the key")
	}
	if Key("hello", ContextFragment, "a2") == base {
		t.Error("adaptation id must affect the key")
	}
	// Boundary shuffling between fields must not collide.
	if Key("ab", Context("c"), "") == Key("a", Context("bc"), "") {
		t.Error("field boundaries must be preserved")
	}
}

func TestCache_PutGet(t *testing.T) {
	cache := NewCache(8, time.Minute)
	result := Result{
		OverallScore: 97,
		Pass:         true,
		TraitScores:  persona.Scores{persona.TraitMysterious: 25},
	}

	cache.Put("k1", result)
	got, ok := cache.Get("k1")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.OverallScore != 97 || !got.Pass || got.TraitScores[persona.TraitMysterious] != 25 {
		t.Fatalf("got %+v", got)
	}

	// A returned copy must not alias the stored entry.
	got.TraitScores[persona.TraitMysterious] = 1
	again, _ := cache.Get("k1")
	if again.TraitScores[persona.TraitMysterious] != 25 {
		t.Error("cache entry was mutated through a returned result")
	}

	if _, ok := cache.Get("absent"); ok {
		t.Error("unexpected hit")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := NewCache(8, time.Minute)
	current := time.Unix(1000, 0)
	cache.now = func() time.Time { return current }

	cache.Put("k1", Result{Pass: true})
	if _, ok := cache.Get("k1"); !ok {
		t.Fatal("expected hit before expiry")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := cache.Get("k1"); ok {
		t.Fatal("expected miss after expiry")
	}
	if cache.Len() != 0 {
		t.Errorf("len = %d, want expired entry removed", cache.Len())
	}
}

func TestCache_LRUEviction(t *testing.T) {
	cache := NewCache(2, time.Minute)

	cache.Put("a", Result{})
	cache.Put("b", Result{})

	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok := cache.Get("a"); !ok {
		t.Fatal("expected hit for a")
	}

	cache.Put("c", Result{})
	if cache.Len() != 2 {
		t.Fatalf("len = %d, want 2", cache.Len())
	}
	if _, ok := cache.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := cache.Get("a"); !ok {
		t.Error("a should have survived")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("c should be present")
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := NewCache(32, time.Minute)

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%40)
				cache.Put(key, Result{OverallScore: float64(i)})
				cache.Get(key)
			}
		}(worker)
	}
	wg.Wait()

	if cache.Len() > 32 {
		t.Errorf("len = %d exceeds capacity", cache.Len())
	}
}
