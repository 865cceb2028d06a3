package types

import (
	ssz "github.com/ferranbt/fastssz"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
)

// BeaconState is the full consensus-critical state machine tracked by
// every node: the validator set and its balances, the fixed-length ring
// buffers of recent history, the justification/finalization bookkeeping,
// and the pending per-epoch accumulators.
type BeaconState struct {
	Slot        Slot
	GenesisTime uint64
	Fork        Fork

	ValidatorRegistry []Validator
	ValidatorBalances []Gwei

	// LatestRandaoMixes is a ring buffer of length EPOCHS_PER_HISTORICAL_VECTOR.
	LatestRandaoMixes []Root

	PreviousJustifiedEpoch Epoch
	PreviousJustifiedRoot  Root
	JustifiedEpoch         Epoch
	JustifiedRoot          Root
	FinalizedEpoch         Epoch
	FinalizedRoot          Root
	JustificationBitfield  uint64

	// LatestCrosslinks is a ring buffer of length SHARD_COUNT.
	LatestCrosslinks []Crosslink
	// LatestBlockRoots is a ring buffer of length SLOTS_PER_HISTORICAL_ROOT.
	LatestBlockRoots []Root
	// LatestActiveIndexRoots is a ring buffer of length EPOCHS_PER_HISTORICAL_VECTOR.
	LatestActiveIndexRoots []Root
	// LatestSlashedBalances is a ring buffer of length EPOCHS_PER_SLASHINGS_VECTOR.
	LatestSlashedBalances []Gwei

	LatestAttestations []PendingAttestationRecord

	LatestEth1Data Eth1Data
	Eth1DataVotes  []Eth1Data
	DepositIndex   uint64
}

func validatorElemSize() int { return (&Validator{}).SizeSSZ() }
func eth1DataElemSize() int  { return (&Eth1Data{}).SizeSSZ() }

func marshalValidators(dst []byte, list []Validator) ([]byte, error) {
	for i := range list {
		var err error
		dst, err = list[i].MarshalSSZTo(dst)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func unmarshalValidators(buf []byte) ([]Validator, error) {
	elemSize := validatorElemSize()
	if elemSize == 0 || len(buf)%elemSize != 0 {
		return nil, ssz.ErrBytesLength
	}
	count := len(buf) / elemSize
	out := make([]Validator, count)
	for i := 0; i < count; i++ {
		if err := out[i].UnmarshalSSZ(buf[i*elemSize : (i+1)*elemSize]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func marshalGweiList(dst []byte, list []Gwei) []byte {
	for _, g := range list {
		dst = ssz.MarshalUint64(dst, uint64(g))
	}
	return dst
}

func unmarshalGweiList(buf []byte) ([]Gwei, error) {
	if len(buf)%8 != 0 {
		return nil, ssz.ErrBytesLength
	}
	count := len(buf) / 8
	out := make([]Gwei, count)
	for i := 0; i < count; i++ {
		out[i] = Gwei(ssz.UnmarshallUint64(buf[i*8 : i*8+8]))
	}
	return out, nil
}

func marshalRootVector(dst []byte, list []Root) []byte {
	for _, r := range list {
		dst = append(dst, r[:]...)
	}
	return dst
}

func unmarshalRootVector(buf []byte, length int) ([]Root, error) {
	if len(buf) != length*32 {
		return nil, ssz.ErrSize
	}
	out := make([]Root, length)
	for i := 0; i < length; i++ {
		copy(out[i][:], buf[i*32:(i+1)*32])
	}
	return out, nil
}

func marshalCrosslinkVector(dst []byte, list []Crosslink) ([]byte, error) {
	for i := range list {
		var err error
		dst, err = list[i].MarshalSSZTo(dst)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func unmarshalCrosslinkVector(buf []byte, length int) ([]Crosslink, error) {
	elemSize := (&Crosslink{}).SizeSSZ()
	if len(buf) != length*elemSize {
		return nil, ssz.ErrSize
	}
	out := make([]Crosslink, length)
	for i := 0; i < length; i++ {
		if err := out[i].UnmarshalSSZ(buf[i*elemSize : (i+1)*elemSize]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func marshalEth1DataVotes(dst []byte, list []Eth1Data) ([]byte, error) {
	for i := range list {
		var err error
		dst, err = list[i].MarshalSSZTo(dst)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func unmarshalEth1DataVotes(buf []byte) ([]Eth1Data, error) {
	elemSize := eth1DataElemSize()
	if elemSize == 0 || len(buf)%elemSize != 0 {
		return nil, ssz.ErrBytesLength
	}
	count := len(buf) / elemSize
	out := make([]Eth1Data, count)
	for i := 0; i < count; i++ {
		if err := out[i].UnmarshalSSZ(buf[i*elemSize : (i+1)*elemSize]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func ringLengths() (randao, crosslinks, blockRoots, activeIndex, slashed int) {
	cfg := params.BeaconConfig()
	return int(cfg.EpochsPerHistoricalVector), int(cfg.ShardCount),
		int(cfg.SlotsPerHistoricalRoot), int(cfg.EpochsPerHistoricalVector),
		int(cfg.EpochsPerSlashingsVector)
}

// SizeSSZ returns the current encoded size of s.
func (s *BeaconState) SizeSSZ() int {
	randaoLen, crosslinkLen, blockRootLen, activeIndexLen, slashedLen := ringLengths()
	size := 8 + 8 + s.Fork.SizeSSZ()
	size += 4 // ValidatorRegistry offset
	size += 4 // ValidatorBalances offset
	size += randaoLen * 32
	size += 8 + 32 + 8 + 32 + 8 + 32 + 8
	size += crosslinkLen * (&Crosslink{}).SizeSSZ()
	size += blockRootLen * 32
	size += activeIndexLen * 32
	size += slashedLen * 8
	size += 4 // LatestAttestations offset
	size += s.LatestEth1Data.SizeSSZ()
	size += 4 // Eth1DataVotes offset
	size += 8 // DepositIndex

	for i := range s.ValidatorRegistry {
		size += s.ValidatorRegistry[i].SizeSSZ()
	}
	size += len(s.ValidatorBalances) * 8
	for i := range s.LatestAttestations {
		size += 4 + s.LatestAttestations[i].SizeSSZ()
	}
	for i := range s.Eth1DataVotes {
		size += s.Eth1DataVotes[i].SizeSSZ()
	}
	return size
}

// MarshalSSZTo appends the canonical encoding of s to dst.
func (s *BeaconState) MarshalSSZTo(dst []byte) ([]byte, error) {
	randaoLen, crosslinkLen, blockRootLen, activeIndexLen, slashedLen := ringLengths()
	if len(s.LatestRandaoMixes) != randaoLen ||
		len(s.LatestCrosslinks) != crosslinkLen ||
		len(s.LatestBlockRoots) != blockRootLen ||
		len(s.LatestActiveIndexRoots) != activeIndexLen ||
		len(s.LatestSlashedBalances) != slashedLen {
		return nil, ssz.ErrVectorLength
	}

	validatorRegistry, err := marshalValidators(nil, s.ValidatorRegistry)
	if err != nil {
		return nil, err
	}
	validatorBalances := marshalGweiList(nil, s.ValidatorBalances)

	attestationElems := make([][]byte, len(s.LatestAttestations))
	for i := range s.LatestAttestations {
		attestationElems[i], err = s.LatestAttestations[i].MarshalSSZ()
		if err != nil {
			return nil, err
		}
	}
	latestAttestations := marshalVariableList(nil, attestationElems)

	eth1DataVotes, err := marshalEth1DataVotes(nil, s.Eth1DataVotes)
	if err != nil {
		return nil, err
	}

	fixedLen := 8 + 8 + s.Fork.SizeSSZ() + 4 + 4 +
		randaoLen*32 + 8 + 32 + 8 + 32 + 8 + 32 + 8 +
		crosslinkLen*(&Crosslink{}).SizeSSZ() + blockRootLen*32 + activeIndexLen*32 + slashedLen*8 +
		4 + s.LatestEth1Data.SizeSSZ() + 4 + 8

	dst = ssz.MarshalUint64(dst, uint64(s.Slot))
	dst = ssz.MarshalUint64(dst, s.GenesisTime)
	dst, err = s.Fork.MarshalSSZTo(dst)
	if err != nil {
		return nil, err
	}

	cursor := fixedLen
	dst = ssz.WriteOffset(dst, cursor) // ValidatorRegistry
	cursor += len(validatorRegistry)
	dst = ssz.WriteOffset(dst, cursor) // ValidatorBalances
	cursor += len(validatorBalances)

	dst = marshalRootVector(dst, s.LatestRandaoMixes)

	dst = ssz.MarshalUint64(dst, uint64(s.PreviousJustifiedEpoch))
	dst = append(dst, s.PreviousJustifiedRoot[:]...)
	dst = ssz.MarshalUint64(dst, uint64(s.JustifiedEpoch))
	dst = append(dst, s.JustifiedRoot[:]...)
	dst = ssz.MarshalUint64(dst, uint64(s.FinalizedEpoch))
	dst = append(dst, s.FinalizedRoot[:]...)
	dst = ssz.MarshalUint64(dst, s.JustificationBitfield)

	dst, err = marshalCrosslinkVector(dst, s.LatestCrosslinks)
	if err != nil {
		return nil, err
	}
	dst = marshalRootVector(dst, s.LatestBlockRoots)
	dst = marshalRootVector(dst, s.LatestActiveIndexRoots)
	dst = marshalGweiList(dst, s.LatestSlashedBalances)

	dst = ssz.WriteOffset(dst, cursor) // LatestAttestations
	cursor += len(latestAttestations)

	dst, err = s.LatestEth1Data.MarshalSSZTo(dst)
	if err != nil {
		return nil, err
	}
	dst = ssz.WriteOffset(dst, cursor) // Eth1DataVotes
	cursor += len(eth1DataVotes)

	dst = ssz.MarshalUint64(dst, s.DepositIndex)

	dst = append(dst, validatorRegistry...)
	dst = append(dst, validatorBalances...)
	dst = append(dst, latestAttestations...)
	dst = append(dst, eth1DataVotes...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of s.
func (s *BeaconState) MarshalSSZ() ([]byte, error) {
	return s.MarshalSSZTo(make([]byte, 0, s.SizeSSZ()))
}

// UnmarshalSSZ decodes buf into s.
func (s *BeaconState) UnmarshalSSZ(buf []byte) error {
	randaoLen, crosslinkLen, blockRootLen, activeIndexLen, slashedLen := ringLengths()
	o := 0
	need := func(n int) error {
		if len(buf) < o+n {
			return ssz.ErrSize
		}
		return nil
	}

	if err := need(8 + 8 + s.Fork.SizeSSZ()); err != nil {
		return err
	}
	s.Slot = Slot(ssz.UnmarshallUint64(buf[o : o+8]))
	o += 8
	s.GenesisTime = ssz.UnmarshallUint64(buf[o : o+8])
	o += 8
	forkSize := s.Fork.SizeSSZ()
	if err := s.Fork.UnmarshalSSZ(buf[o : o+forkSize]); err != nil {
		return err
	}
	o += forkSize

	if err := need(8); err != nil {
		return err
	}
	validatorRegistryOffset := int(ssz.UnmarshallUint32(buf[o : o+4]))
	o += 4
	validatorBalancesOffset := int(ssz.UnmarshallUint32(buf[o : o+4]))
	o += 4

	if err := need(randaoLen * 32); err != nil {
		return err
	}
	var err error
	s.LatestRandaoMixes, err = unmarshalRootVector(buf[o:o+randaoLen*32], randaoLen)
	if err != nil {
		return err
	}
	o += randaoLen * 32

	if err := need(8 + 32 + 8 + 32 + 8 + 32 + 8); err != nil {
		return err
	}
	s.PreviousJustifiedEpoch = Epoch(ssz.UnmarshallUint64(buf[o : o+8]))
	o += 8
	copy(s.PreviousJustifiedRoot[:], buf[o:o+32])
	o += 32
	s.JustifiedEpoch = Epoch(ssz.UnmarshallUint64(buf[o : o+8]))
	o += 8
	copy(s.JustifiedRoot[:], buf[o:o+32])
	o += 32
	s.FinalizedEpoch = Epoch(ssz.UnmarshallUint64(buf[o : o+8]))
	o += 8
	copy(s.FinalizedRoot[:], buf[o:o+32])
	o += 32
	s.JustificationBitfield = ssz.UnmarshallUint64(buf[o : o+8])
	o += 8

	crosslinkElemSize := (&Crosslink{}).SizeSSZ()
	if err := need(crosslinkLen * crosslinkElemSize); err != nil {
		return err
	}
	s.LatestCrosslinks, err = unmarshalCrosslinkVector(buf[o:o+crosslinkLen*crosslinkElemSize], crosslinkLen)
	if err != nil {
		return err
	}
	o += crosslinkLen * crosslinkElemSize

	if err := need(blockRootLen * 32); err != nil {
		return err
	}
	s.LatestBlockRoots, err = unmarshalRootVector(buf[o:o+blockRootLen*32], blockRootLen)
	if err != nil {
		return err
	}
	o += blockRootLen * 32

	if err := need(activeIndexLen * 32); err != nil {
		return err
	}
	s.LatestActiveIndexRoots, err = unmarshalRootVector(buf[o:o+activeIndexLen*32], activeIndexLen)
	if err != nil {
		return err
	}
	o += activeIndexLen * 32

	if err := need(slashedLen * 8); err != nil {
		return err
	}
	s.LatestSlashedBalances, err = unmarshalGweiList(buf[o : o+slashedLen*8])
	if err != nil {
		return err
	}
	o += slashedLen * 8

	if err := need(4); err != nil {
		return err
	}
	latestAttestationsOffset := int(ssz.UnmarshallUint32(buf[o : o+4]))
	o += 4

	eth1Size := s.LatestEth1Data.SizeSSZ()
	if err := need(eth1Size); err != nil {
		return err
	}
	if err := s.LatestEth1Data.UnmarshalSSZ(buf[o : o+eth1Size]); err != nil {
		return err
	}
	o += eth1Size

	if err := need(4 + 8); err != nil {
		return err
	}
	eth1DataVotesOffset := int(ssz.UnmarshallUint32(buf[o : o+4]))
	o += 4
	s.DepositIndex = ssz.UnmarshallUint64(buf[o : o+8])
	o += 8

	tail := len(buf)
	offsets := []int{validatorRegistryOffset, validatorBalancesOffset, latestAttestationsOffset, eth1DataVotesOffset, tail}
	for i := 0; i < len(offsets)-1; i++ {
		if offsets[i] > offsets[i+1] || offsets[i] > tail {
			return ssz.ErrOffset
		}
	}

	s.ValidatorRegistry, err = unmarshalValidators(buf[offsets[0]:offsets[1]])
	if err != nil {
		return err
	}
	s.ValidatorBalances, err = unmarshalGweiList(buf[offsets[1]:offsets[2]])
	if err != nil {
		return err
	}

	attestationBuf := buf[offsets[2]:offsets[3]]
	attestationOffsets, err := unmarshalVariableListOffsets(attestationBuf)
	if err != nil {
		return err
	}
	s.LatestAttestations = make([]PendingAttestationRecord, len(attestationOffsets)-1)
	for i := 0; i < len(attestationOffsets)-1; i++ {
		if err := s.LatestAttestations[i].UnmarshalSSZ(attestationBuf[attestationOffsets[i]:attestationOffsets[i+1]]); err != nil {
			return err
		}
	}

	s.Eth1DataVotes, err = unmarshalEth1DataVotes(buf[offsets[3]:offsets[4]])
	if err != nil {
		return err
	}
	return nil
}

// HashTreeRoot returns the tree-hash digest of s.
func (s *BeaconState) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(s) }

// HashTreeRootWith merkleizes s's fields, in declaration order, into hh.
func (s *BeaconState) HashTreeRootWith(hh *ssz.Hasher) error {
	cfg := params.BeaconConfig()
	indx := hh.Index()

	hh.PutUint64(uint64(s.Slot))
	hh.PutUint64(s.GenesisTime)
	if err := s.Fork.HashTreeRootWith(hh); err != nil {
		return err
	}
	{
		subIndx := hh.Index()
		for i := range s.ValidatorRegistry {
			if err := s.ValidatorRegistry[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(subIndx, uint64(len(s.ValidatorRegistry)), cfg.ValidatorRegistryLimit)
	}
	{
		subIndx := hh.Index()
		for _, bal := range s.ValidatorBalances {
			hh.PutUint64(uint64(bal))
		}
		limit := (cfg.ValidatorRegistryLimit*8 + 31) / 32
		hh.MerkleizeWithMixin(subIndx, uint64(len(s.ValidatorBalances)), limit)
	}
	{
		subIndx := hh.Index()
		for _, r := range s.LatestRandaoMixes {
			hh.AppendBytes32(r[:])
		}
		hh.Merkleize(subIndx)
	}
	hh.PutUint64(uint64(s.PreviousJustifiedEpoch))
	hh.PutBytes(s.PreviousJustifiedRoot[:])
	hh.PutUint64(uint64(s.JustifiedEpoch))
	hh.PutBytes(s.JustifiedRoot[:])
	hh.PutUint64(uint64(s.FinalizedEpoch))
	hh.PutBytes(s.FinalizedRoot[:])
	hh.PutUint64(s.JustificationBitfield)
	{
		subIndx := hh.Index()
		for i := range s.LatestCrosslinks {
			if err := s.LatestCrosslinks[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.Merkleize(subIndx)
	}
	{
		subIndx := hh.Index()
		for _, r := range s.LatestBlockRoots {
			hh.AppendBytes32(r[:])
		}
		hh.Merkleize(subIndx)
	}
	{
		subIndx := hh.Index()
		for _, r := range s.LatestActiveIndexRoots {
			hh.AppendBytes32(r[:])
		}
		hh.Merkleize(subIndx)
	}
	{
		subIndx := hh.Index()
		for _, bal := range s.LatestSlashedBalances {
			hh.PutUint64(uint64(bal))
		}
		hh.Merkleize(subIndx)
	}
	{
		subIndx := hh.Index()
		for i := range s.LatestAttestations {
			if err := s.LatestAttestations[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		limit := cfg.SlotsPerEpoch * cfg.MaxAttestations
		hh.MerkleizeWithMixin(subIndx, uint64(len(s.LatestAttestations)), limit)
	}
	if err := s.LatestEth1Data.HashTreeRootWith(hh); err != nil {
		return err
	}
	{
		subIndx := hh.Index()
		for i := range s.Eth1DataVotes {
			if err := s.Eth1DataVotes[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(subIndx, uint64(len(s.Eth1DataVotes)), cfg.SlotsPerEth1VotingPeriod)
	}
	hh.PutUint64(s.DepositIndex)

	hh.Merkleize(indx)
	return nil
}

// Copy returns a deep copy of s, safe to mutate independently: every
// transition in this module works in place, so anything that needs to
// try a transition without disturbing the original (the proposer building
// a candidate block against the current head, for one) must start from a
// copy rather than the shared state.
func (s *BeaconState) Copy() *BeaconState {
	cp := *s
	cp.ValidatorRegistry = append([]Validator{}, s.ValidatorRegistry...)
	cp.ValidatorBalances = append([]Gwei{}, s.ValidatorBalances...)
	cp.LatestRandaoMixes = append([]Root{}, s.LatestRandaoMixes...)
	cp.LatestCrosslinks = append([]Crosslink{}, s.LatestCrosslinks...)
	cp.LatestBlockRoots = append([]Root{}, s.LatestBlockRoots...)
	cp.LatestActiveIndexRoots = append([]Root{}, s.LatestActiveIndexRoots...)
	cp.LatestSlashedBalances = append([]Gwei{}, s.LatestSlashedBalances...)
	cp.LatestAttestations = append([]PendingAttestationRecord{}, s.LatestAttestations...)
	cp.Eth1DataVotes = append([]Eth1Data{}, s.Eth1DataVotes...)
	return &cp
}
