package dto

import (
	"encoding/base64"

	capsuleDomain "github.com/chainsensors/capsules/internal/capsule/domain"
)

// UploadCapsuleResponse is returned after a capsule is stored.
type UploadCapsuleResponse struct {
	BlobID   string `json:"blobId"`
	Existing bool   `json:"existing"`
}

// BlobResponse carries a fetched blob.
type BlobResponse struct {
	BlobID        string `json:"blobId"`
	ContentBase64 string `json:"contentBase64"`
}

// MapBlobToUploadResponse converts a stored blob to its response.
func MapBlobToUploadResponse(blob *capsuleDomain.Blob) UploadCapsuleResponse {
	return UploadCapsuleResponse{
		BlobID:   blob.ID.String(),
		Existing: blob.Existing,
	}
}

// MapContentToBlobResponse converts fetched content to its response.
func MapContentToBlobResponse(id string, content []byte) BlobResponse {
	return BlobResponse{
		BlobID:        id,
		ContentBase64: base64.StdEncoding.EncodeToString(content),
	}
}
