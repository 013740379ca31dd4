package counting

import (
	"math"
	"slices"
	"unicode/utf16"
)

// SeededOrderVersion names the PRNG and shuffle below. Changing either one
// changes every historical tie-break, so any new scheme needs a new version.
const SeededOrderVersion = "arc4-fy-1"

// SeededOrder returns a deterministic permutation of ids derived from seed.
// The order is used only to break ties between equally low candidates.
//
// ids are sorted ascending before shuffling, so only the set of IDs matters.
// The generator is an ARC4 stream (RC4-drop[256] keyed by the seed's UTF-16
// code units) producing 52-bit doubles, followed by a descending
// Fisher-Yates shuffle with j = floor(next() * (i+1)).
func SeededOrder(ids []CandidateID, seed string) []CandidateID {
	out := make([]CandidateID, len(ids))
	copy(out, ids)
	slices.Sort(out)

	rng := newSeededRand(seed)
	for i := len(out) - 1; i > 0; i-- {
		j := int(math.Floor(rng.Float64() * float64(i+1)))
		out[i], out[j] = out[j], out[i]
	}
	return out
}

type arc4 struct {
	i, j uint8
	s    [256]uint8
}

func newARC4(key []int) *arc4 {
	if len(key) == 0 {
		key = []int{0}
	}

	a := &arc4{}
	for i := range a.s {
		a.s[i] = uint8(i)
	}

	j := 0
	for i := 0; i < 256; i++ {
		t := a.s[i]
		j = (j + key[i%len(key)] + int(t)) & 0xff
		a.s[i] = a.s[j]
		a.s[j] = t
	}

	a.next(256)
	return a
}

// next returns count output bytes as a big-endian integer. count <= 7 keeps
// the result exact; 256 is only used to discard the initial keystream.
func (a *arc4) next(count int) uint64 {
	var r uint64
	for ; count > 0; count-- {
		a.i++
		t := a.s[a.i]
		a.j += t
		a.s[a.i] = a.s[a.j]
		a.s[a.j] = t
		r = r<<8 | uint64(a.s[a.s[a.i]+a.s[a.j]])
	}
	return r
}

type seededRand struct {
	stream *arc4
}

func newSeededRand(seed string) *seededRand {
	return &seededRand{stream: newARC4(mixKey(seed))}
}

func mixKey(seed string) []int {
	units := utf16.Encode([]rune(seed))

	key := make([]int, min(len(units), 256))
	smear := 0
	for j, c := range units {
		smear ^= key[j&0xff] * 19
		key[j&0xff] = (smear + int(c)) & 0xff
	}
	return key
}

const (
	startExp     = 48
	significance = uint64(1) << 52
	overflow     = uint64(1) << 53
)

// Float64 returns a double in [0, 1) carrying 52 bits of keystream.
func (r *seededRand) Float64() float64 {
	n := r.stream.next(6)
	exp := startExp
	var x uint64
	for n < significance {
		n = (n + x) << 8
		exp += 8
		x = r.stream.next(1)
	}
	for n >= overflow {
		n >>= 1
		exp--
		x >>= 1
	}
	return math.Ldexp(float64(n+x), -exp)
}
