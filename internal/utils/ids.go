package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateSessionID returns "{unix-ms}-{32 random hex}-{16 hex of sha256}".
// The hash mixes in a UUID so two IDs minted in the same millisecond with a
// colliding random part still differ.
func GenerateSessionID(now time.Time) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	ts := fmt.Sprintf("%d", now.UnixMilli())
	random := hex.EncodeToString(buf)
	salt := strings.ReplaceAll(uuid.NewString(), "-", "")

	sum := sha256.Sum256([]byte(ts + "-" + random + "-" + salt))
	return ts + "-" + random + "-" + hex.EncodeToString(sum[:])[:16], nil
}

// RandomHex returns n random bytes hex encoded.
func RandomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
