package core

import (
	"encoding/hex"

	"lukechampine.com/blake3"

	"github.com/captvenkat/faujnet-backend/internal/classify"
)

// Fingerprint digests the duplicate-identity triple of a submission
func Fingerprint(f classify.SubmissionFields) string {
	sum := blake3.Sum256([]byte(f.Organisation + f.Title + f.ValidityStart))
	return hex.EncodeToString(sum[:])
}
