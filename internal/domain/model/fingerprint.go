package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// fingerprintLen is the number of hex characters kept from the SHA-256 digest.
const fingerprintLen = 16

// Fingerprint is a short deterministic digest of a canonicalized payload,
// used to detect content changes between poll cycles.
type Fingerprint string

// ComputeFingerprint digests a payload for change detection. JSON payloads
// are canonicalized first (decode then re-encode, which sorts object keys)
// so transport artifacts like field ordering never register as changes.
// Non-JSON payloads are digested as raw bytes.
func ComputeFingerprint(payload []byte) Fingerprint {
	var v any
	if err := json.Unmarshal(payload, &v); err == nil {
		if canonical, err := json.Marshal(v); err == nil {
			payload = canonical
		}
	}

	sum := sha256.Sum256(payload)
	return Fingerprint(hex.EncodeToString(sum[:])[:fingerprintLen])
}
