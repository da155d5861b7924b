package service

import (
	"crypto/sha256"
	"encoding/binary"

	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

// Seed tags of the confidential computation network's accounts.
const (
	seedCompDef     = "ComputationDefinitionAccount"
	seedMXE         = "MXEAccount"
	seedMempool     = "Mempool"
	seedExecpool    = "Execpool"
	seedComputation = "ComputationAccount"
	seedCluster     = "Cluster"
	seedFeePool     = "FeePool"
	seedClock       = "ClockAccount"
	seedSigner      = "SignerAccount"
)

// OffsetFor returns the circuit index registered for name: the first four bytes of
// SHA-256(name) read as a little-endian integer.
func OffsetFor(name string) uint32 {
	b := OffsetBytes(name)
	return binary.LittleEndian.Uint32(b[:])
}

// OffsetBytes returns the first four bytes of SHA-256(name).
func OffsetBytes(name string) [4]byte {
	sum := sha256.Sum256([]byte(name))
	var out [4]byte
	copy(out[:], sum[:4])
	return out
}

// Deriver computes the network accounts needed to queue a computation for a program.
// Every method is a pure function of its arguments and the network program id.
type Deriver struct {
	network ledgerDomain.PublicKey
}

// NewDeriver creates a Deriver for the computation network deployed at network.
func NewDeriver(network ledgerDomain.PublicKey) *Deriver {
	return &Deriver{network: network}
}

// NetworkProgramID returns the computation network program id.
func (d *Deriver) NetworkProgramID() ledgerDomain.PublicKey {
	return d.network
}

func (d *Deriver) find(seeds ...[]byte) (ledgerDomain.PublicKey, error) {
	addr, _, err := FindProgramAddress(seeds, d.network)
	return addr, err
}

// CompDefAddress returns the computation definition account of circuit offset under programID.
func (d *Deriver) CompDefAddress(programID ledgerDomain.PublicKey, offset uint32) (ledgerDomain.PublicKey, error) {
	return d.find([]byte(seedCompDef), programID[:], binary.LittleEndian.AppendUint32(nil, offset))
}

// CompDefAddressFor is CompDefAddress(programID, OffsetFor(name)).
func (d *Deriver) CompDefAddressFor(programID ledgerDomain.PublicKey, name string) (ledgerDomain.PublicKey, error) {
	return d.CompDefAddress(programID, OffsetFor(name))
}

// MXEAddress returns the execution environment account registered for programID.
func (d *Deriver) MXEAddress(programID ledgerDomain.PublicKey) (ledgerDomain.PublicKey, error) {
	return d.find([]byte(seedMXE), programID[:])
}

// MempoolAddress returns the queue that holds programID's pending computations.
func (d *Deriver) MempoolAddress(programID ledgerDomain.PublicKey) (ledgerDomain.PublicKey, error) {
	return d.find([]byte(seedMempool), programID[:])
}

// ExecutingPoolAddress returns the pool of programID's computations being executed.
func (d *Deriver) ExecutingPoolAddress(programID ledgerDomain.PublicKey) (ledgerDomain.PublicKey, error) {
	return d.find([]byte(seedExecpool), programID[:])
}

// ComputationAddress returns the per-invocation account indexed by computationOffset.
func (d *Deriver) ComputationAddress(
	programID ledgerDomain.PublicKey,
	computationOffset uint64,
) (ledgerDomain.PublicKey, error) {
	return d.find([]byte(seedComputation), programID[:], binary.LittleEndian.AppendUint64(nil, computationOffset))
}

// ClusterAddress returns the node cluster account at clusterOffset.
func (d *Deriver) ClusterAddress(clusterOffset uint32) (ledgerDomain.PublicKey, error) {
	return d.find([]byte(seedCluster), binary.LittleEndian.AppendUint32(nil, clusterOffset))
}

// FeePoolAddress returns the network-wide fee pool.
func (d *Deriver) FeePoolAddress() (ledgerDomain.PublicKey, error) {
	return d.find([]byte(seedFeePool))
}

// ClockAddress returns the network clock account.
func (d *Deriver) ClockAddress() (ledgerDomain.PublicKey, error) {
	return d.find([]byte(seedClock))
}

// SignerAddress returns the program's signing PDA. It lives under programID, not the network.
func (d *Deriver) SignerAddress(programID ledgerDomain.PublicKey) (ledgerDomain.PublicKey, error) {
	addr, _, err := FindProgramAddress([][]byte{[]byte(seedSigner)}, programID)
	return addr, err
}
