package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscriminators(t *testing.T) {
	assert.Equal(t, [8]byte{24, 80, 32, 117, 183, 44, 152, 214}, InstructionDiscriminator("reseal_dek"))
	assert.Equal(t, [8]byte{23, 222, 11, 116, 152, 180, 129, 226}, InstructionDiscriminator("finalize_purchase"))
	assert.Equal(t, [8]byte{204, 104, 117, 198, 112, 204, 74, 183}, EventDiscriminator("ResealOutput"))
	assert.Equal(t, [8]byte{249, 134, 184, 141, 217, 218, 149, 183}, EventDiscriminator("QualityScoreEvent"))
	assert.Equal(t, [8]byte{216, 77, 35, 130, 158, 98, 175, 206}, EventDiscriminator("PurchaseSealed"))
}
