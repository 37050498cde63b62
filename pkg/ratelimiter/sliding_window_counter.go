package ratelimiter

import (
	"sync"
	"time"
)

// SlidingWindowCounter implements the RateLimiter interface using the sliding
// window counter algorithm. It divides the window into buckets, which keeps the
// memory footprint small while avoiding the boundary burst problem of a plain
// fixed window counter.
type SlidingWindowCounter struct {
	limit      int           // maximum requests allowed inside the window
	window     time.Duration // total duration of the sliding window
	numBuckets int
	bucketSize time.Duration

	mu         sync.Mutex
	buckets    []int
	current    int // index of the current bucket
	lastUpdate time.Time
}

// NewSlidingWindowCounter creates a new SlidingWindowCounter.
// limit: the maximum number of requests allowed in the window.
// window: the duration of the time window.
// numBuckets: the number of buckets to divide the window into.
func NewSlidingWindowCounter(limit int, window time.Duration, numBuckets int) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	return &SlidingWindowCounter{
		limit:      limit,
		window:     window,
		numBuckets: numBuckets,
		bucketSize: window / time.Duration(numBuckets),
		buckets:    make([]int, numBuckets),
		lastUpdate: time.Now(),
	}
}

// advance slides the window forward, clearing buckets that fell out of it.
// Caller must hold the mutex.
func (swc *SlidingWindowCounter) advance() {
	now := time.Now()
	steps := int(now.Sub(swc.lastUpdate) / swc.bucketSize)
	if steps <= 0 {
		return
	}

	if steps >= swc.numBuckets {
		for i := range swc.buckets {
			swc.buckets[i] = 0
		}
	} else {
		for i := 1; i <= steps; i++ {
			swc.buckets[(swc.current+i)%swc.numBuckets] = 0
		}
	}
	swc.current = (swc.current + steps) % swc.numBuckets
	swc.lastUpdate = now
}

// Allow checks if a request is allowed.
func (swc *SlidingWindowCounter) Allow() bool {
	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.advance()

	var total int
	for _, count := range swc.buckets {
		total += count
	}
	if total < swc.limit {
		swc.buckets[swc.current]++
		return true
	}
	return false
}
