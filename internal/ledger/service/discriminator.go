package service

import bin "github.com/gagliardetto/binary"

// DiscriminatorSize is the prefix length identifying instructions and events.
const DiscriminatorSize = bin.ACCOUNT_DISCRIMINATOR_SIZE

const sighashEventNamespace = "event"

// InstructionDiscriminator returns sha256("global:<name>")[:8].
func InstructionDiscriminator(name string) [DiscriminatorSize]byte {
	return bin.SighashTypeID(bin.SIGHASH_GLOBAL_NAMESPACE, name)
}

// EventDiscriminator returns sha256("event:<name>")[:8].
func EventDiscriminator(name string) [DiscriminatorSize]byte {
	return bin.SighashTypeID(sighashEventNamespace, name)
}
