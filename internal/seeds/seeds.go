// Package seeds derives independent per-unit random seeds from a base seed.
// The derivation is a fixed function of (base, index), so the assignment of
// seeds to repetitions or trees never depends on execution order.
package seeds

// Derive returns the seed for the i-th unit of work under base. It applies a
// splitmix64 finalizer to base+i+1 so neighboring indices produce
// uncorrelated streams.
func Derive(base int64, i int) int64 {
	z := uint64(base) + uint64(i+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z ^= z >> 31
	return int64(z)
}
