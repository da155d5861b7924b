package service

import (
	"github.com/gagliardetto/solana-go"

	"github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

// IsOnCurve reports whether b decodes to an ed25519 point. Program-derived addresses must
// not, so that no private key can sign for them.
func IsOnCurve(b [32]byte) bool {
	return solana.IsOnCurve(b[:])
}

func checkSeeds(seeds [][]byte, reserved int) error {
	if len(seeds)+reserved > solana.MaxSeeds {
		return ledgerDomain.ErrSeedTooLong
	}
	for _, seed := range seeds {
		if len(seed) > solana.MaxSeedLength {
			return ledgerDomain.ErrSeedTooLong
		}
	}
	return nil
}

// CreateProgramAddress hashes seeds under programID and rejects results on the curve.
func CreateProgramAddress(seeds [][]byte, programID ledgerDomain.PublicKey) (ledgerDomain.PublicKey, error) {
	if err := checkSeeds(seeds, 0); err != nil {
		return ledgerDomain.PublicKey{}, err
	}
	addr, err := solana.CreateProgramAddress(seeds, solana.PublicKey(programID))
	if err != nil {
		return ledgerDomain.PublicKey{}, errors.Wrap(ledgerDomain.ErrNoViableBump, err.Error())
	}
	return ledgerDomain.PublicKey(addr), nil
}

// FindProgramAddress searches bumps from 255 down and returns the first off-curve address.
// The bump seed takes one of the sixteen seed slots.
func FindProgramAddress(seeds [][]byte, programID ledgerDomain.PublicKey) (ledgerDomain.PublicKey, uint8, error) {
	if err := checkSeeds(seeds, 1); err != nil {
		return ledgerDomain.PublicKey{}, 0, err
	}
	addr, bump, err := solana.FindProgramAddress(seeds[:len(seeds):len(seeds)], solana.PublicKey(programID))
	if err != nil {
		return ledgerDomain.PublicKey{}, 0, errors.Wrap(ledgerDomain.ErrNoViableBump, err.Error())
	}
	return ledgerDomain.PublicKey(addr), bump, nil
}
