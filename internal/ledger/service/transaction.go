package service

import (
	"crypto/ed25519"

	"github.com/gagliardetto/solana-go"

	"github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

// BuildTransaction compiles instructions into an unsigned legacy transaction paid by payer.
// Accounts referenced several times are merged, keeping the strongest signer and writable
// flags, and the payer is placed first.
func BuildTransaction(
	payer ledgerDomain.PublicKey,
	blockhash ledgerDomain.Hash,
	instructions ...ledgerDomain.Instruction,
) (*solana.Transaction, error) {
	if len(instructions) == 0 {
		return nil, ledgerDomain.ErrInvalidTransaction
	}

	compiled := make([]solana.Instruction, 0, len(instructions))
	for _, ix := range instructions {
		metas := make(solana.AccountMetaSlice, 0, len(ix.Accounts))
		for _, meta := range ix.Accounts {
			metas = append(metas, solana.NewAccountMeta(solana.PublicKey(meta.PublicKey), meta.IsWritable, meta.IsSigner))
		}
		compiled = append(compiled, solana.NewInstruction(solana.PublicKey(ix.ProgramID), metas, ix.Data))
	}

	tx, err := solana.NewTransaction(compiled, solana.Hash(blockhash), solana.TransactionPayer(solana.PublicKey(payer)))
	if err != nil {
		return nil, errors.Wrap(ledgerDomain.ErrInvalidTransaction, err.Error())
	}
	return tx, nil
}

// SignTransaction signs tx with every required signer. Keys that the message does not
// require are ignored; a missing required key yields ErrMissingSigner.
func SignTransaction(tx *solana.Transaction, signers ...ed25519.PrivateKey) error {
	byKey := make(map[solana.PublicKey]solana.PrivateKey, len(signers))
	for _, key := range signers {
		pk := solana.PrivateKey(key)
		byKey[pk.PublicKey()] = pk
	}
	for _, required := range tx.Message.Signers() {
		if _, ok := byKey[required]; !ok {
			return errors.Wrap(ledgerDomain.ErrMissingSigner, required.String())
		}
	}

	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		pk := byKey[key]
		return &pk
	})
	if err != nil {
		return errors.Wrap(ledgerDomain.ErrInvalidTransaction, err.Error())
	}
	return nil
}

// TransactionSignature returns the first signature, which identifies the transaction.
func TransactionSignature(tx *solana.Transaction) ledgerDomain.Signature {
	if len(tx.Signatures) == 0 {
		return ledgerDomain.Signature{}
	}
	return ledgerDomain.Signature(tx.Signatures[0])
}

// DecodeTransaction parses the wire form of a signed transaction.
func DecodeTransaction(data []byte) (*solana.Transaction, error) {
	tx, err := solana.TransactionFromBytes(data)
	if err != nil {
		return nil, errors.Wrap(ledgerDomain.ErrInvalidTransaction, err.Error())
	}
	return tx, nil
}

// TransactionInstructions expands the compiled instructions of tx back into account metas.
func TransactionInstructions(tx *solana.Transaction) ([]ledgerDomain.Instruction, error) {
	out := make([]ledgerDomain.Instruction, 0, len(tx.Message.Instructions))
	for i := range tx.Message.Instructions {
		ci := &tx.Message.Instructions[i]
		program, err := tx.Message.Program(ci.ProgramIDIndex)
		if err != nil {
			return nil, errors.Wrap(ledgerDomain.ErrInvalidTransaction, err.Error())
		}
		for _, idx := range ci.Accounts {
			if int(idx) >= len(tx.Message.AccountKeys) {
				return nil, ledgerDomain.ErrInvalidTransaction
			}
		}
		metas, err := ci.ResolveInstructionAccounts(&tx.Message)
		if err != nil {
			return nil, errors.Wrap(ledgerDomain.ErrInvalidTransaction, err.Error())
		}

		ix := ledgerDomain.Instruction{
			ProgramID: ledgerDomain.PublicKey(program),
			Accounts:  make([]ledgerDomain.AccountMeta, len(metas)),
			Data:      ci.Data,
		}
		for j, meta := range metas {
			ix.Accounts[j] = ledgerDomain.Meta(ledgerDomain.PublicKey(meta.PublicKey), meta.IsSigner, meta.IsWritable)
		}
		out = append(out, ix)
	}
	return out, nil
}
