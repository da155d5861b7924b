package service

import (
	"bytes"

	"github.com/gagliardetto/solana-go"

	"github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

// Instruction names of the marketplace program.
const (
	InstructionResealDek        = "reseal_dek"
	InstructionFinalizePurchase = "finalize_purchase"
)

// SysvarClockID is the clock sysvar read by finalize_purchase.
var SysvarClockID = ledgerDomain.PublicKey(solana.SysVarClockPubkey)

// MaxCIDLength bounds the buyer capsule identifier stored on the purchase record.
const MaxCIDLength = 64

// ResealDekArgs are the reseal_dek instruction arguments, encoded in this order. Nonce
// is the capsule nonce as a little-endian u128; Limbs are the capsule ciphertexts c0..c3.
type ResealDekArgs struct {
	ComputationOffset uint64
	Nonce             [16]byte
	BuyerX25519       [32]byte
	Limbs             [4][32]byte
}

// ResealDekArgsSize is the encoded length of ResealDekArgs after the discriminator.
const ResealDekArgsSize = 8 + 16 + 32 + 4*32

// ResealDekAccounts lists the accounts reseal_dek binds, in instruction order.
type ResealDekAccounts struct {
	Payer          ledgerDomain.PublicKey
	Signer         ledgerDomain.PublicKey
	MXE            ledgerDomain.PublicKey
	Mempool        ledgerDomain.PublicKey
	ExecutingPool  ledgerDomain.PublicKey
	Computation    ledgerDomain.PublicKey
	CompDef        ledgerDomain.PublicKey
	Cluster        ledgerDomain.PublicKey
	FeePool        ledgerDomain.PublicKey
	Clock          ledgerDomain.PublicKey
	NetworkProgram ledgerDomain.PublicKey
	ListingState   ledgerDomain.PublicKey
	PurchaseRecord ledgerDomain.PublicKey
}

// ResealAccounts derives every account of a reseal_dek invocation.
func (d *Deriver) ResealAccounts(
	programID, payer, listing, record ledgerDomain.PublicKey,
	circuitName string,
	clusterOffset uint32,
	computationOffset uint64,
) (*ResealDekAccounts, error) {
	accounts := &ResealDekAccounts{
		Payer:          payer,
		NetworkProgram: d.network,
		ListingState:   listing,
		PurchaseRecord: record,
	}

	var err error
	derive := func(dst *ledgerDomain.PublicKey, fn func() (ledgerDomain.PublicKey, error)) {
		if err != nil {
			return
		}
		*dst, err = fn()
	}

	derive(&accounts.Signer, func() (ledgerDomain.PublicKey, error) { return d.SignerAddress(programID) })
	derive(&accounts.MXE, func() (ledgerDomain.PublicKey, error) { return d.MXEAddress(programID) })
	derive(&accounts.Mempool, func() (ledgerDomain.PublicKey, error) { return d.MempoolAddress(programID) })
	derive(&accounts.ExecutingPool, func() (ledgerDomain.PublicKey, error) { return d.ExecutingPoolAddress(programID) })
	derive(&accounts.Computation, func() (ledgerDomain.PublicKey, error) {
		return d.ComputationAddress(programID, computationOffset)
	})
	derive(&accounts.CompDef, func() (ledgerDomain.PublicKey, error) { return d.CompDefAddressFor(programID, circuitName) })
	derive(&accounts.Cluster, func() (ledgerDomain.PublicKey, error) { return d.ClusterAddress(clusterOffset) })
	derive(&accounts.FeePool, d.FeePoolAddress)
	derive(&accounts.Clock, d.ClockAddress)

	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// BuildResealDek encodes a reseal_dek instruction.
func BuildResealDek(
	programID ledgerDomain.PublicKey,
	accounts *ResealDekAccounts,
	args *ResealDekArgs,
) (ledgerDomain.Instruction, error) {
	w := newBorshWriter(InstructionDiscriminator(InstructionResealDek)).
		u64(args.ComputationOffset).
		raw(args.Nonce[:]).
		raw(args.BuyerX25519[:])
	for i := range args.Limbs {
		w.raw(args.Limbs[i][:])
	}
	data, err := w.encoded()
	if err != nil {
		return ledgerDomain.Instruction{}, errors.Wrap(err, "encode reseal_dek")
	}

	return ledgerDomain.Instruction{
		ProgramID: programID,
		Accounts: []ledgerDomain.AccountMeta{
			ledgerDomain.Meta(accounts.Payer, true, true),
			ledgerDomain.Meta(accounts.Signer, false, true),
			ledgerDomain.Meta(accounts.MXE, false, false),
			ledgerDomain.Meta(accounts.Mempool, false, true),
			ledgerDomain.Meta(accounts.ExecutingPool, false, true),
			ledgerDomain.Meta(accounts.Computation, false, true),
			ledgerDomain.Meta(accounts.CompDef, false, false),
			ledgerDomain.Meta(accounts.Cluster, false, true),
			ledgerDomain.Meta(accounts.FeePool, false, true),
			ledgerDomain.Meta(accounts.Clock, false, true),
			ledgerDomain.Meta(ledgerDomain.SystemProgramID, false, false),
			ledgerDomain.Meta(accounts.NetworkProgram, false, false),
			ledgerDomain.Meta(accounts.ListingState, false, false),
			ledgerDomain.Meta(accounts.PurchaseRecord, false, true),
		},
		Data: data,
	}, nil
}

// DecodeResealDek parses the arguments and the listing/record accounts of a reseal_dek
// instruction built by BuildResealDek.
func DecodeResealDek(ix ledgerDomain.Instruction) (*ResealDekArgs, *ResealDekAccounts, error) {
	if !hasDiscriminator(ix.Data, InstructionResealDek) {
		return nil, nil, ledgerDomain.ErrInvalidEventData
	}
	if len(ix.Accounts) != 14 {
		return nil, nil, ledgerDomain.ErrInvalidEventData
	}

	r := newBorshReader(ix.Data[DiscriminatorSize:])
	args := &ResealDekArgs{ComputationOffset: r.u64()}
	r.fixed(args.Nonce[:])
	r.fixed(args.BuyerX25519[:])
	for i := range args.Limbs {
		r.fixed(args.Limbs[i][:])
	}
	if err := r.finish(); err != nil {
		return nil, nil, err
	}

	key := func(i int) ledgerDomain.PublicKey { return ix.Accounts[i].PublicKey }
	accounts := &ResealDekAccounts{
		Payer:          key(0),
		Signer:         key(1),
		MXE:            key(2),
		Mempool:        key(3),
		ExecutingPool:  key(4),
		Computation:    key(5),
		CompDef:        key(6),
		Cluster:        key(7),
		FeePool:        key(8),
		Clock:          key(9),
		NetworkProgram: key(11),
		ListingState:   key(12),
		PurchaseRecord: key(13),
	}
	return args, accounts, nil
}

// MarketplaceAddress returns the marketplace state account administered by admin.
func MarketplaceAddress(programID, admin ledgerDomain.PublicKey) (ledgerDomain.PublicKey, error) {
	addr, _, err := FindProgramAddress([][]byte{[]byte("marketplace"), admin[:]}, programID)
	return addr, err
}

// FinalizePurchaseAccounts lists the accounts finalize_purchase binds.
type FinalizePurchaseAccounts struct {
	Authority      ledgerDomain.PublicKey
	Marketplace    ledgerDomain.PublicKey
	ListingState   ledgerDomain.PublicKey
	PurchaseRecord ledgerDomain.PublicKey
}

// BuildFinalizePurchase encodes finalize_purchase(cid). The cid must be non-empty and at
// most MaxCIDLength bytes; the program enforces the same bound.
func BuildFinalizePurchase(
	programID ledgerDomain.PublicKey,
	accounts *FinalizePurchaseAccounts,
	cid string,
) (ledgerDomain.Instruction, error) {
	if cid == "" || len(cid) > MaxCIDLength {
		return ledgerDomain.Instruction{}, ErrInvalidCID
	}

	data, err := newBorshWriter(InstructionDiscriminator(InstructionFinalizePurchase)).str(cid).encoded()
	if err != nil {
		return ledgerDomain.Instruction{}, errors.Wrap(err, "encode finalize_purchase")
	}

	return ledgerDomain.Instruction{
		ProgramID: programID,
		Accounts: []ledgerDomain.AccountMeta{
			ledgerDomain.Meta(accounts.Authority, true, false),
			ledgerDomain.Meta(accounts.Marketplace, false, false),
			ledgerDomain.Meta(accounts.ListingState, false, false),
			ledgerDomain.Meta(accounts.PurchaseRecord, false, true),
			ledgerDomain.Meta(SysvarClockID, false, false),
		},
		Data: data,
	}, nil
}

// DecodeFinalizePurchase returns the cid and the listing/record of a finalize_purchase instruction.
func DecodeFinalizePurchase(ix ledgerDomain.Instruction) (string, *FinalizePurchaseAccounts, error) {
	if !hasDiscriminator(ix.Data, InstructionFinalizePurchase) {
		return "", nil, ledgerDomain.ErrInvalidEventData
	}
	if len(ix.Accounts) != 5 {
		return "", nil, ledgerDomain.ErrInvalidEventData
	}

	r := newBorshReader(ix.Data[DiscriminatorSize:])
	cid := r.str()
	if err := r.finish(); err != nil {
		return "", nil, err
	}

	return cid, &FinalizePurchaseAccounts{
		Authority:      ix.Accounts[0].PublicKey,
		Marketplace:    ix.Accounts[1].PublicKey,
		ListingState:   ix.Accounts[2].PublicKey,
		PurchaseRecord: ix.Accounts[3].PublicKey,
	}, nil
}

// InstructionName returns the name of a known marketplace instruction, or "".
func InstructionName(data []byte) string {
	for _, name := range []string{InstructionResealDek, InstructionFinalizePurchase} {
		if hasDiscriminator(data, name) {
			return name
		}
	}
	return ""
}

func hasDiscriminator(data []byte, name string) bool {
	disc := InstructionDiscriminator(name)
	return len(data) >= DiscriminatorSize && bytes.Equal(data[:DiscriminatorSize], disc[:])
}
