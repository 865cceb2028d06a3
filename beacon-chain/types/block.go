package types

import (
	ssz "github.com/ferranbt/fastssz"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
)

// BeaconBlockBody carries the six operation lists a proposer may include,
// bounded by the MAX_* constants in params.BeaconChainConfig.
type BeaconBlockBody struct {
	RandaoReveal      BLSSignature
	Eth1Data          Eth1Data
	ProposerSlashings []ProposerSlashing
	AttesterSlashings []AttesterSlashing
	Attestations      []Attestation
	Deposits          []Deposit
	VoluntaryExits    []VoluntaryExit
	Transfers         []Transfer
}

// Per-list element sizes, assuming every element of a fixed-size-element
// list shares one (true for every list type below).
func proposerSlashingElemSize() int { return (&ProposerSlashing{}).SizeSSZ() }
func voluntaryExitElemSize() int    { return (&VoluntaryExit{}).SizeSSZ() }
func transferElemSize() int         { return (&Transfer{}).SizeSSZ() }
func depositElemSize() int          { return (&Deposit{}).SizeSSZ() }

// marshalProposerSlashings concatenates the fixed-size encoding of each
// proposer slashing.
func marshalProposerSlashings(dst []byte, list []ProposerSlashing) ([]byte, error) {
	for i := range list {
		var err error
		dst, err = list[i].MarshalSSZTo(dst)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func unmarshalProposerSlashings(buf []byte) ([]ProposerSlashing, error) {
	elemSize := proposerSlashingElemSize()
	if elemSize == 0 || len(buf)%elemSize != 0 {
		return nil, ssz.ErrBytesLength
	}
	count := len(buf) / elemSize
	out := make([]ProposerSlashing, count)
	for i := 0; i < count; i++ {
		if err := out[i].UnmarshalSSZ(buf[i*elemSize : (i+1)*elemSize]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func marshalVoluntaryExits(dst []byte, list []VoluntaryExit) ([]byte, error) {
	for i := range list {
		var err error
		dst, err = list[i].MarshalSSZTo(dst)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func unmarshalVoluntaryExits(buf []byte) ([]VoluntaryExit, error) {
	elemSize := voluntaryExitElemSize()
	if elemSize == 0 || len(buf)%elemSize != 0 {
		return nil, ssz.ErrBytesLength
	}
	count := len(buf) / elemSize
	out := make([]VoluntaryExit, count)
	for i := 0; i < count; i++ {
		if err := out[i].UnmarshalSSZ(buf[i*elemSize : (i+1)*elemSize]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func marshalTransfers(dst []byte, list []Transfer) ([]byte, error) {
	for i := range list {
		var err error
		dst, err = list[i].MarshalSSZTo(dst)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func unmarshalTransfers(buf []byte) ([]Transfer, error) {
	elemSize := transferElemSize()
	if elemSize == 0 || len(buf)%elemSize != 0 {
		return nil, ssz.ErrBytesLength
	}
	count := len(buf) / elemSize
	out := make([]Transfer, count)
	for i := 0; i < count; i++ {
		if err := out[i].UnmarshalSSZ(buf[i*elemSize : (i+1)*elemSize]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// marshalDeposits concatenates each deposit's fixed-size encoding. Deposit
// is fixed-size because its Merkle proof vector has a protocol-constant
// length, not a bound.
func marshalDeposits(dst []byte, list []Deposit) ([]byte, error) {
	for i := range list {
		var err error
		dst, err = list[i].MarshalSSZTo(dst)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func unmarshalDeposits(buf []byte) ([]Deposit, error) {
	elemSize := depositElemSize()
	if elemSize == 0 || len(buf)%elemSize != 0 {
		return nil, ssz.ErrBytesLength
	}
	count := len(buf) / elemSize
	out := make([]Deposit, count)
	for i := 0; i < count; i++ {
		if err := out[i].UnmarshalSSZ(buf[i*elemSize : (i+1)*elemSize]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// marshalVariableList is the shared encoder for a list whose elements are
// themselves variable-size: an offset table (one 4-byte offset per
// element, relative to the start of this list's own buffer) followed by
// the concatenated element encodings, in fastssz's list-of-variable-size
// convention.
func marshalVariableList(dst []byte, elems [][]byte) []byte {
	headLen := 4 * len(elems)
	cursor := headLen
	for _, e := range elems {
		dst = ssz.WriteOffset(dst, cursor)
		cursor += len(e)
	}
	for _, e := range elems {
		dst = append(dst, e...)
	}
	return dst
}

func unmarshalVariableListOffsets(buf []byte) ([]int, error) {
	if len(buf) == 0 {
		// Zero elements: a one-entry table so len(offsets)-1 counts none.
		return []int{0}, nil
	}
	if len(buf) < 4 {
		return nil, ssz.ErrSize
	}
	first := int(ssz.UnmarshallUint32(buf[0:4]))
	if first%4 != 0 {
		return nil, ssz.ErrOffset
	}
	count := first / 4
	offsets := make([]int, count+1)
	for i := 0; i < count; i++ {
		offsets[i] = int(ssz.UnmarshallUint32(buf[i*4 : i*4+4]))
	}
	offsets[count] = len(buf)
	return offsets, nil
}

// SizeSSZ returns the current encoded size of b.
func (b *BeaconBlockBody) SizeSSZ() int {
	size := 96 + b.Eth1Data.SizeSSZ() + 4*6
	for i := range b.ProposerSlashings {
		size += b.ProposerSlashings[i].SizeSSZ()
	}
	for i := range b.AttesterSlashings {
		size += 4 + b.AttesterSlashings[i].SizeSSZ()
	}
	for i := range b.Attestations {
		size += 4 + b.Attestations[i].SizeSSZ()
	}
	for i := range b.Deposits {
		size += b.Deposits[i].SizeSSZ()
	}
	for i := range b.VoluntaryExits {
		size += b.VoluntaryExits[i].SizeSSZ()
	}
	for i := range b.Transfers {
		size += b.Transfers[i].SizeSSZ()
	}
	return size
}

// MarshalSSZTo appends the canonical encoding of b to dst.
func (b *BeaconBlockBody) MarshalSSZTo(dst []byte) ([]byte, error) {
	fixedLen := 96 + b.Eth1Data.SizeSSZ() + 4*6
	dst = append(dst, b.RandaoReveal[:]...)
	var err error
	dst, err = b.Eth1Data.MarshalSSZTo(dst)
	if err != nil {
		return nil, err
	}

	proposerSlashings, err := marshalProposerSlashings(nil, b.ProposerSlashings)
	if err != nil {
		return nil, err
	}
	attesterElems := make([][]byte, len(b.AttesterSlashings))
	for i := range b.AttesterSlashings {
		attesterElems[i], err = b.AttesterSlashings[i].MarshalSSZ()
		if err != nil {
			return nil, err
		}
	}
	attesterSlashings := marshalVariableList(nil, attesterElems)

	attestationElems := make([][]byte, len(b.Attestations))
	for i := range b.Attestations {
		attestationElems[i], err = b.Attestations[i].MarshalSSZ()
		if err != nil {
			return nil, err
		}
	}
	attestations := marshalVariableList(nil, attestationElems)

	deposits, err := marshalDeposits(nil, b.Deposits)
	if err != nil {
		return nil, err
	}
	voluntaryExits, err := marshalVoluntaryExits(nil, b.VoluntaryExits)
	if err != nil {
		return nil, err
	}
	transfers, err := marshalTransfers(nil, b.Transfers)
	if err != nil {
		return nil, err
	}

	cursor := fixedLen
	dst = ssz.WriteOffset(dst, cursor)
	cursor += len(proposerSlashings)
	dst = ssz.WriteOffset(dst, cursor)
	cursor += len(attesterSlashings)
	dst = ssz.WriteOffset(dst, cursor)
	cursor += len(attestations)
	dst = ssz.WriteOffset(dst, cursor)
	cursor += len(deposits)
	dst = ssz.WriteOffset(dst, cursor)
	cursor += len(voluntaryExits)
	dst = ssz.WriteOffset(dst, cursor)

	dst = append(dst, proposerSlashings...)
	dst = append(dst, attesterSlashings...)
	dst = append(dst, attestations...)
	dst = append(dst, deposits...)
	dst = append(dst, voluntaryExits...)
	dst = append(dst, transfers...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of b.
func (b *BeaconBlockBody) MarshalSSZ() ([]byte, error) {
	return b.MarshalSSZTo(make([]byte, 0, b.SizeSSZ()))
}

// UnmarshalSSZ decodes buf into b.
func (b *BeaconBlockBody) UnmarshalSSZ(buf []byte) error {
	eth1Size := b.Eth1Data.SizeSSZ()
	fixedLen := 96 + eth1Size + 4*6
	if len(buf) < fixedLen {
		return ssz.ErrSize
	}
	copy(b.RandaoReveal[:], buf[0:96])
	if err := b.Eth1Data.UnmarshalSSZ(buf[96 : 96+eth1Size]); err != nil {
		return err
	}
	o := 96 + eth1Size
	offsets := make([]int, 6)
	for i := 0; i < 6; i++ {
		offsets[i] = int(ssz.UnmarshallUint32(buf[o : o+4]))
		o += 4
	}
	offsets = append(offsets, len(buf))
	for i := 0; i < len(offsets)-1; i++ {
		if offsets[i] > offsets[i+1] || offsets[i] > len(buf) {
			return ssz.ErrOffset
		}
	}

	var err error
	b.ProposerSlashings, err = unmarshalProposerSlashings(buf[offsets[0]:offsets[1]])
	if err != nil {
		return err
	}

	attesterBuf := buf[offsets[1]:offsets[2]]
	attesterOffsets, err := unmarshalVariableListOffsets(attesterBuf)
	if err != nil {
		return err
	}
	b.AttesterSlashings = make([]AttesterSlashing, len(attesterOffsets)-1)
	for i := 0; i < len(attesterOffsets)-1; i++ {
		if err := b.AttesterSlashings[i].UnmarshalSSZ(attesterBuf[attesterOffsets[i]:attesterOffsets[i+1]]); err != nil {
			return err
		}
	}

	attestationBuf := buf[offsets[2]:offsets[3]]
	attestationOffsets, err := unmarshalVariableListOffsets(attestationBuf)
	if err != nil {
		return err
	}
	b.Attestations = make([]Attestation, len(attestationOffsets)-1)
	for i := 0; i < len(attestationOffsets)-1; i++ {
		if err := b.Attestations[i].UnmarshalSSZ(attestationBuf[attestationOffsets[i]:attestationOffsets[i+1]]); err != nil {
			return err
		}
	}

	b.Deposits, err = unmarshalDeposits(buf[offsets[3]:offsets[4]])
	if err != nil {
		return err
	}
	b.VoluntaryExits, err = unmarshalVoluntaryExits(buf[offsets[4]:offsets[5]])
	if err != nil {
		return err
	}
	b.Transfers, err = unmarshalTransfers(buf[offsets[5]:offsets[6]])
	if err != nil {
		return err
	}
	return nil
}

// HashTreeRoot returns the tree-hash digest of b.
func (b *BeaconBlockBody) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(b) }

// HashTreeRootWith merkleizes b's fields, in declaration order, into hh.
// Each list is merkleized with a length mixin bounded by its MAX_*
// protocol constant.
func (b *BeaconBlockBody) HashTreeRootWith(hh *ssz.Hasher) error {
	cfg := params.BeaconConfig()
	indx := hh.Index()
	hh.PutBytes(b.RandaoReveal[:])
	if err := b.Eth1Data.HashTreeRootWith(hh); err != nil {
		return err
	}
	{
		subIndx := hh.Index()
		for i := range b.ProposerSlashings {
			if err := b.ProposerSlashings[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(subIndx, uint64(len(b.ProposerSlashings)), cfg.MaxProposerSlashings)
	}
	{
		subIndx := hh.Index()
		for i := range b.AttesterSlashings {
			if err := b.AttesterSlashings[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(subIndx, uint64(len(b.AttesterSlashings)), cfg.MaxAttesterSlashings)
	}
	{
		subIndx := hh.Index()
		for i := range b.Attestations {
			if err := b.Attestations[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(subIndx, uint64(len(b.Attestations)), cfg.MaxAttestations)
	}
	{
		subIndx := hh.Index()
		for i := range b.Deposits {
			if err := b.Deposits[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(subIndx, uint64(len(b.Deposits)), cfg.MaxDeposits)
	}
	{
		subIndx := hh.Index()
		for i := range b.VoluntaryExits {
			if err := b.VoluntaryExits[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(subIndx, uint64(len(b.VoluntaryExits)), cfg.MaxVoluntaryExits)
	}
	{
		subIndx := hh.Index()
		for i := range b.Transfers {
			if err := b.Transfers[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(subIndx, uint64(len(b.Transfers)), cfg.MaxTransfers)
	}
	hh.Merkleize(indx)
	return nil
}

// BeaconBlock is a single proposal: a header plus its operation body.
type BeaconBlock struct {
	Slot         Slot
	ParentRoot   Root
	StateRoot    Root
	RandaoReveal BLSSignature
	Eth1Data     Eth1Data
	Body         *BeaconBlockBody
	Signature    BLSSignature
}

// SizeSSZ returns the current encoded size of blk.
func (blk *BeaconBlock) SizeSSZ() int {
	body := blk.Body
	if body == nil {
		body = &BeaconBlockBody{}
	}
	return 8 + 32 + 32 + 96 + blk.Eth1Data.SizeSSZ() + 4 + body.SizeSSZ() + 96
}

// MarshalSSZTo appends the canonical encoding of blk to dst.
func (blk *BeaconBlock) MarshalSSZTo(dst []byte) ([]byte, error) {
	body := blk.Body
	if body == nil {
		body = &BeaconBlockBody{}
	}
	fixedLen := 8 + 32 + 32 + 96 + blk.Eth1Data.SizeSSZ() + 4
	dst = ssz.MarshalUint64(dst, uint64(blk.Slot))
	dst = append(dst, blk.ParentRoot[:]...)
	dst = append(dst, blk.StateRoot[:]...)
	dst = append(dst, blk.RandaoReveal[:]...)
	var err error
	dst, err = blk.Eth1Data.MarshalSSZTo(dst)
	if err != nil {
		return nil, err
	}
	dst = ssz.WriteOffset(dst, fixedLen)
	bodyBuf, err := body.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	dst = append(dst, bodyBuf...)
	dst = append(dst, blk.Signature[:]...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of blk.
func (blk *BeaconBlock) MarshalSSZ() ([]byte, error) {
	return blk.MarshalSSZTo(make([]byte, 0, blk.SizeSSZ()))
}

// UnmarshalSSZ decodes buf into blk.
func (blk *BeaconBlock) UnmarshalSSZ(buf []byte) error {
	eth1Size := blk.Eth1Data.SizeSSZ()
	fixedLen := 8 + 32 + 32 + 96 + eth1Size + 4
	if len(buf) < fixedLen+96 {
		return ssz.ErrSize
	}
	o := 0
	blk.Slot = Slot(ssz.UnmarshallUint64(buf[o : o+8]))
	o += 8
	copy(blk.ParentRoot[:], buf[o:o+32])
	o += 32
	copy(blk.StateRoot[:], buf[o:o+32])
	o += 32
	copy(blk.RandaoReveal[:], buf[o:o+96])
	o += 96
	if err := blk.Eth1Data.UnmarshalSSZ(buf[o : o+eth1Size]); err != nil {
		return err
	}
	o += eth1Size
	bodyOffset := int(ssz.UnmarshallUint32(buf[o : o+4]))
	if bodyOffset != fixedLen {
		return ssz.ErrOffset
	}
	sigStart := len(buf) - 96
	if sigStart < bodyOffset {
		return ssz.ErrSize
	}
	blk.Body = &BeaconBlockBody{}
	if err := blk.Body.UnmarshalSSZ(buf[bodyOffset:sigStart]); err != nil {
		return err
	}
	copy(blk.Signature[:], buf[sigStart:])
	return nil
}

// HashTreeRoot returns the tree-hash digest of blk.
func (blk *BeaconBlock) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(blk) }

// HashTreeRootWith merkleizes blk's fields, in declaration order, into hh.
func (blk *BeaconBlock) HashTreeRootWith(hh *ssz.Hasher) error {
	body := blk.Body
	if body == nil {
		body = &BeaconBlockBody{}
	}
	indx := hh.Index()
	hh.PutUint64(uint64(blk.Slot))
	hh.PutBytes(blk.ParentRoot[:])
	hh.PutBytes(blk.StateRoot[:])
	hh.PutBytes(blk.RandaoReveal[:])
	if err := blk.Eth1Data.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := body.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBytes(blk.Signature[:])
	hh.Merkleize(indx)
	return nil
}

// SigningRoot returns tree_hash_truncate(block, "signature"), the root a
// proposer's block signature is computed over.
func (blk *BeaconBlock) SigningRoot() ([32]byte, error) {
	body := blk.Body
	if body == nil {
		body = &BeaconBlockBody{}
	}
	hh := ssz.DefaultHasherPool.Get()
	defer ssz.DefaultHasherPool.Put(hh)
	indx := hh.Index()
	hh.PutUint64(uint64(blk.Slot))
	hh.PutBytes(blk.ParentRoot[:])
	hh.PutBytes(blk.StateRoot[:])
	hh.PutBytes(blk.RandaoReveal[:])
	if err := blk.Eth1Data.HashTreeRootWith(hh); err != nil {
		return [32]byte{}, err
	}
	if err := body.HashTreeRootWith(hh); err != nil {
		return [32]byte{}, err
	}
	hh.Merkleize(indx)
	return hh.HashRoot()
}

// HeaderRoot returns the block's chain identity: its tree hash with
// state_root and signature zeroed. A block's own post-state records this
// root in latest_block_roots, and both fields must be excluded for that
// to be well defined — the proposer fills them in only after the
// post-state (and therefore the ring entry) is already fixed. Storage,
// fork choice, and parent_root references all use this same root.
func (blk *BeaconBlock) HeaderRoot() ([32]byte, error) {
	header := *blk
	header.StateRoot = Root{}
	header.Signature = BLSSignature{}
	return header.HashTreeRoot()
}
