package validator

import (
	"testing"

	"github.com/prysmaticlabs/go-bitfield"
	"github.com/stretchr/testify/assert"
)

// TestAggregationBitfieldPlacement checks that, given a committee of 19
// validators with the target validator at index 11, the bitfield Attest
// builds places a single set bit at position 11 and leaves every other
// position, including the custody bitfield, clear.
func TestAggregationBitfieldPlacement(t *testing.T) {
	const committeeSize = 19
	const targetIndexInCommittee = 11

	aggregationBits := bitfield.NewBitlist(committeeSize)
	aggregationBits.SetBitAt(targetIndexInCommittee, true)
	custodyBits := bitfield.NewBitlist(committeeSize)

	bits := []byte(aggregationBits)
	assert.Len(t, bits, 3)
	assert.Equal(t, byte(0), bits[0])
	assert.Equal(t, byte(1<<3), bits[1])
	assert.Equal(t, byte(0), bits[2])

	assert.Equal(t, []byte{0, 0, 0}, []byte(custodyBits))
}
