package helpers

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"
)

// maxShuffleListSize bounds ShuffleList's input against accidental misuse;
// production callers never approach it, but a test can lower it to exercise
// the guard cheaply.
var maxShuffleListSize = uint64(1 << 40)

// shuffleRoundCount matches MainnetConfig().ShuffleRoundCount; it's
// duplicated here as a constant because the swap-or-not algorithm below
// is a compile-time-known sequence of rounds, not state.
const shuffleRoundCount = 90

// ShuffledIndex returns the position that index maps to under the
// swap-or-not permutation seeded by seed, without materializing the whole
// list. It's the single-element building block ShuffleList batches.
func ShuffledIndex(index, listSize uint64, seed [32]byte) (uint64, error) {
	if listSize == 0 {
		return 0, errors.New("helpers: empty list has no shuffled index")
	}
	if index >= listSize {
		return 0, errors.Errorf("helpers: index %d out of bounds for list size %d", index, listSize)
	}
	for round := uint64(0); round < shuffleRoundCount; round++ {
		pivot := hashedPivot(seed, round, listSize)
		flip := (pivot + listSize - index) % listSize
		position := index
		if flip > position {
			position = flip
		}
		source := hashSource(seed, round, position/256)
		b := source[(position%256)/8]
		bit := (b >> (position % 8)) & 1
		if bit == 1 {
			index = flip
		}
	}
	return index, nil
}

// ShuffleList permutes list in place under the swap-or-not shuffle seeded
// by seed and returns it, reusing the caller's backing array.
func ShuffleList(list []uint64, seed [32]byte) ([]uint64, error) {
	listSize := uint64(len(list))
	if listSize > maxShuffleListSize {
		return nil, errors.Errorf("helpers: list size %d exceeds maximum shuffle size %d", listSize, maxShuffleListSize)
	}
	if listSize == 0 {
		return list, nil
	}
	for round := uint64(0); round < shuffleRoundCount; round++ {
		pivot := hashedPivot(seed, round, listSize)
		for i := uint64(0); i < listSize; i++ {
			flip := (pivot + listSize - i) % listSize
			if flip <= i {
				continue
			}
			position := flip
			source := hashSource(seed, round, position/256)
			b := source[(position%256)/8]
			bit := (b >> (position % 8)) & 1
			if bit == 1 {
				list[i], list[flip] = list[flip], list[i]
			}
		}
	}
	return list, nil
}

func hashedPivot(seed [32]byte, round, listSize uint64) uint64 {
	h := sha256.New()
	h.Write(seed[:])
	h.Write([]byte{byte(round)})
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8]) % listSize
}

func hashSource(seed [32]byte, round, positionBucket uint64) []byte {
	h := sha256.New()
	h.Write(seed[:])
	h.Write([]byte{byte(round)})
	var bucket [4]byte
	binary.LittleEndian.PutUint32(bucket[:], uint32(positionBucket))
	h.Write(bucket[:])
	return h.Sum(nil)
}

// SplitIndices splits list into n roughly-equal, order-preserving slices,
// used to divide an epoch's active validators into per-slot committee
// pools and a committee's members into per-shard committees.
func SplitIndices(list []uint64, n uint64) [][]uint64 {
	if n == 0 {
		return nil
	}
	out := make([][]uint64, n)
	total := uint64(len(list))
	for i := uint64(0); i < n; i++ {
		start := total * i / n
		end := total * (i + 1) / n
		out[i] = list[start:end]
	}
	return out
}
