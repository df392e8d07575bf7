package app

import (
	"math/rand"
	"sort"
	"sync"
)

// Randomizer is a goroutine-safe source for sampling and shuffling.
type Randomizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomizer(seed int64) *Randomizer {
	return &Randomizer{rnd: rand.New(rand.NewSource(seed))}
}

// Sample draws k distinct indices from [0, n) uniformly without replacement.
// The result is sorted; presentation order is decided separately.
func (r *Randomizer) Sample(n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	r.mu.Lock()
	perm := r.rnd.Perm(n)
	r.mu.Unlock()

	picked := append([]int(nil), perm[:k]...)
	sort.Ints(picked)
	return picked
}

// Shuffle permutes xs in place.
func (r *Randomizer) Shuffle(xs []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rnd.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
}

// Perm returns a random permutation of [0, n).
func (r *Randomizer) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Perm(n)
}
