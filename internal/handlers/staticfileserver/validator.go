package staticfileserver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// validatorTokenLen is the number of hex characters kept from the digest.
const validatorTokenLen = 16

// generateValidator derives the ETag for a file from its size, modification
// time, and path. This is deliberately not a content hash: two files with
// identical bytes at different paths get different validators, and the
// validator changes whenever the file is touched. Identical
// (size, mtime, path) inputs always produce the same token.
func generateValidator(size int64, modTime time.Time, path string, weak bool) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d,%d,%s", size, modTime.Unix(), path)))
	token := hex.EncodeToString(sum[:])[:validatorTokenLen]
	if weak {
		return `W/"` + token + `"`
	}
	return `"` + token + `"`
}
