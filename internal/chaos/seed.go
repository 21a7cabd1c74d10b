package chaos

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewRand returns a generator seeded with seed, or with a crypto/rand seed
// when seed is zero.
func NewRand(seed int64) (*rand.Rand, error) {
	if seed == 0 {
		var b [8]byte
		if _, err := crand.Read(b[:]); err != nil {
			return nil, fmt.Errorf("read random seed: %w", err)
		}
		seed = int64(binary.LittleEndian.Uint64(b[:]))
	}
	return rand.New(rand.NewSource(seed)), nil
}
