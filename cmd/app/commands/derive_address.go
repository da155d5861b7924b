package commands

import (
	"fmt"
	"io"

	ledgerService "github.com/chainsensors/capsules/internal/ledger/service"
)

// DeriveAddressInput groups the arguments of RunDeriveAddress. Admin is optional; when set,
// the marketplace account is printed as well.
type DeriveAddressInput struct {
	ProgramID         string
	Payer             string
	Listing           string
	Record            string
	Admin             string
	CircuitName       string
	ClusterOffset     uint32
	ComputationOffset uint64
}

// RunDeriveAddress prints every account a reseal_dek invocation binds. Nothing is sent to
// the network.
func RunDeriveAddress(writer io.Writer, deriver *ledgerService.Deriver, in DeriveAddressInput, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	programID, err := parseAddress("program", in.ProgramID)
	if err != nil {
		return err
	}
	payer, err := parseAddress("payer", in.Payer)
	if err != nil {
		return err
	}
	listing, err := parseAddress("listing", in.Listing)
	if err != nil {
		return err
	}
	record, err := parseAddress("record", in.Record)
	if err != nil {
		return err
	}

	accounts, err := deriver.ResealAccounts(
		programID, payer, listing, record,
		in.CircuitName, in.ClusterOffset, in.ComputationOffset,
	)
	if err != nil {
		return fmt.Errorf("failed to derive accounts: %w", err)
	}

	// Ordered as the instruction binds them.
	rows := [][2]string{
		{"payer", accounts.Payer.String()},
		{"signer", accounts.Signer.String()},
		{"mxe", accounts.MXE.String()},
		{"mempool", accounts.Mempool.String()},
		{"executing_pool", accounts.ExecutingPool.String()},
		{"computation", accounts.Computation.String()},
		{"comp_def", accounts.CompDef.String()},
		{"cluster", accounts.Cluster.String()},
		{"fee_pool", accounts.FeePool.String()},
		{"clock", accounts.Clock.String()},
		{"network_program", accounts.NetworkProgram.String()},
		{"listing_state", accounts.ListingState.String()},
		{"purchase_record", accounts.PurchaseRecord.String()},
	}

	if in.Admin != "" {
		admin, err := parseAddress("admin", in.Admin)
		if err != nil {
			return err
		}
		marketplace, err := ledgerService.MarketplaceAddress(programID, admin)
		if err != nil {
			return fmt.Errorf("failed to derive marketplace: %w", err)
		}
		rows = append(rows, [2]string{"marketplace", marketplace.String()})
	}

	if format == "json" {
		out := make(map[string]string, len(rows)+1)
		for _, row := range rows {
			out[row[0]] = row[1]
		}
		out["comp_def_offset"] = fmt.Sprintf("%d", ledgerService.OffsetFor(in.CircuitName))
		return writeJSON(writer, out)
	}

	for _, row := range rows {
		if _, err := fmt.Fprintf(writer, "%-16s %s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(writer, "%-16s %d\n", "comp_def_offset", ledgerService.OffsetFor(in.CircuitName))
	return err
}
