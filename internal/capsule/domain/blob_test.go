package domain

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBlobID(t *testing.T) {
	content := []byte("sealed capsule bytes")

	first := ComputeBlobID(content)
	second := ComputeBlobID(append([]byte(nil), content...))
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, ComputeBlobID([]byte("other bytes")))

	decoded, err := base64.RawURLEncoding.DecodeString(first.String())
	assert.NoError(t, err)
	assert.Len(t, decoded, 32)
}

func TestCandidateIDs(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want []string
	}{
		{"empty", "  ", nil},
		{"already url safe and unpadded", "abcd-_", []string{"abcd-_", "abcd+/=="}},
		{"standard padded", "ab+/cd==", []string{"ab+/cd==", "ab-_cd"}},
		{"plain alphanumeric", "abcd", []string{"abcd"}},
		{"plain needing padding", "abcdef", []string{"abcdef", "abcdef=="}},
		{"trims whitespace", " ab+c \n", []string{"ab+c", "ab-c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CandidateIDs(tt.id))
		})
	}
}
