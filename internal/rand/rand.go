// Package rand supplies the randomness the etching orchestrator needs for
// commit-transaction entropy, standing in for a canister's call to
// management-canister raw_rand.
package rand

import "crypto/rand"

// Source32 returns 32 bytes of cryptographically secure randomness.
func Source32() ([32]byte, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return buf, err
	}
	return buf, nil
}
