package quiz

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
)

// The shuffler is fully deterministic: the same seed string always produces
// the same permutation. No entropy source other than the seed is consulted,
// so a stored attempt can be reconstructed bit-for-bit for auditing.

// NewSeed mints the attempt seed from the wall clock plus a random component.
// It is generated once at attempt creation and stored verbatim.
func NewSeed(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString())
}

// PoolSeed derives the seed used for question ordering.
func PoolSeed(seed string) string {
	return "pool:" + seed
}

// OptionSeed derives the per-question seed used for option ordering. Mixing
// the question id in keeps option permutations independent across questions
// and uncorrelated with the pool permutation.
func OptionSeed(seed, questionID string) string {
	return "options:" + seed + ":" + questionID
}

// Perm returns a deterministic permutation of [0, n) driven by the seed.
func Perm(seed string, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	r := newRand(seed)
	// Fisher-Yates over the PRNG stream.
	for i := n - 1; i > 0; i-- {
		j := r.intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// ShuffleStrings returns a deterministically shuffled copy of values.
func ShuffleStrings(seed string, values []string) []string {
	perm := Perm(seed, len(values))
	out := make([]string, len(values))
	for i, p := range perm {
		out[i] = values[p]
	}
	return out
}

// rand is a mulberry32 PRNG seeded from a 32-bit FNV-1a hash of the seed
// string. Small and fast; statistical quality is more than enough for fair
// shuffling and the stream is stable across platforms.
type rand struct {
	state uint32
}

func newRand(seed string) *rand {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return &rand{state: h.Sum32()}
}

func (r *rand) next() uint32 {
	r.state += 0x6D2B79F5
	t := r.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return t ^ (t >> 14)
}

func (r *rand) intn(n int) int {
	return int(uint64(r.next()) * uint64(n) >> 32)
}
