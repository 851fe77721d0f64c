package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	cache "github.com/openhouse/portalcache"
	"github.com/openhouse/portalcache/engine"
	"github.com/openhouse/portalcache/expiration"
	"github.com/openhouse/portalcache/refresh"
	"github.com/openhouse/portalcache/types"
)

// ================= SLOW ORIGIN =================

// Origin stands in for the portal API: every fetch takes latency.
type Origin struct {
	latency time.Duration
	fetches atomic.Int64
}

func (o *Origin) Fetch(ctx context.Context, unitUID, token string) ([]string, error) {
	o.fetches.Add(1)
	select {
	case <-time.After(o.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []string{unitUID + "/floorplan.pdf", unitUID + "/warranty.pdf"}, nil
}

// ================= COUNTING METRICS =================

type Counters struct {
	hits, misses, stale, coalesced, refreshes atomic.Int64
}

func (c *Counters) Hit()           { c.hits.Add(1) }
func (c *Counters) Miss()          { c.misses.Add(1) }
func (c *Counters) Stale()         { c.stale.Add(1) }
func (c *Counters) Coalesced()     { c.coalesced.Add(1) }
func (c *Counters) Superseded()    {}
func (c *Counters) Invalidated()   {}
func (c *Counters) Refresh()       { c.refreshes.Add(1) }
func (c *Counters) RefreshFailed() {}

var _ types.Metrics = (*Counters)(nil)

// ================= BENCHMARK =================

func main() {
	ctx := context.Background()

	// ---------------- Config ----------------
	const (
		shards     = 16
		units      = 500
		goroutines = 200
		opsPerG    = 5000
		staleAfter = 50 * time.Millisecond
		latency    = 20 * time.Millisecond
	)

	fmt.Println("\n================ CACHE LOAD BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Shards        :", shards)
	fmt.Println("Units         :", units)
	fmt.Println("Goroutines    :", goroutines)
	fmt.Println("Ops/Goroutine :", opsPerG)
	fmt.Println("Stale After   :", staleAfter)
	fmt.Println("Fetch Latency :", latency)
	fmt.Println("---------------------------------")

	// ---------------- Cache Engine ----------------
	origin := &Origin{latency: latency}
	counters := &Counters{}

	eng := engine.NewCacheEngine(
		expiration.NewFixedAge(staleAfter),
		refresh.NewBackoff(3, 0, 0),
		counters,
	)

	c := cache.NewKeyedCache[[]string](shards, eng)
	r := cache.NewReader[[]string](c, origin, time.Second)

	// ---------------- Cold Start ----------------
	// Every goroutine asks for the same unit at once: one fetch should
	// serve all of them.
	fmt.Println("Cold start on a single unit...")

	wg := sync.WaitGroup{}
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			r.Read(ctx, "unit-0", "tok")
		}()
	}
	wg.Wait()

	coldFetches := origin.fetches.Load()
	fmt.Printf("Cold start fetches: %d for %d readers\n", coldFetches, goroutines)

	// ---------------- Load Test ----------------
	fmt.Println("Running concurrency benchmark...")

	start := time.Now()

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerG; j++ {
				unit := fmt.Sprintf("unit-%d", (id*opsPerG+j)%units)
				r.Read(ctx, unit, "tok")
			}
		}(i)
	}
	wg.Wait()

	duration := time.Since(start)
	totalOps := goroutines * opsPerG

	// Let background revalidations settle before counting.
	time.Sleep(2 * latency)

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %d\n", totalOps)
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %.2f ops/sec\n", float64(totalOps)/duration.Seconds())
	fmt.Println("---------------------------------")
	fmt.Printf("Fresh Hits       : %d\n", counters.hits.Load())
	fmt.Printf("Stale Hits       : %d\n", counters.stale.Load())
	fmt.Printf("Misses           : %d\n", counters.misses.Load())
	fmt.Printf("Coalesced        : %d\n", counters.coalesced.Load())
	fmt.Printf("Revalidations    : %d\n", counters.refreshes.Load())
	fmt.Printf("Origin Fetches   : %d\n", origin.fetches.Load())
	fmt.Println("=========================================")

	c.ClearAll()
}
