package model

import (
	"crypto/sha256"
	"encoding/hex"
)

const addressDomain = "trustplay"

// Seed prefixes for derived addresses.
const (
	SeedRoom        = "room"
	SeedVault       = "vault"
	SeedParticipant = "participant"
	SeedClaim       = "claim"
	SeedVoter       = "voter"
	SeedReputation  = "rep"
	SeedWhitelist   = "whitelist"
)

// Derive returns the canonical address for seeds along with the salt that
// produced it. Salts are tried from 255 downwards; digests with a zero first
// byte are reserved for system slots and skipped.
func Derive(seeds ...string) (string, uint8) {
	for salt := 255; salt >= 0; salt-- {
		sum := digest(uint8(salt), seeds)
		if sum[0] != 0 {
			return hex.EncodeToString(sum[:]), uint8(salt)
		}
	}
	// Unreachable in practice: 256 consecutive zero-prefixed digests.
	panic("model: no valid derivation salt")
}

// IsDerivedAddress reports whether v has the shape of a derived address:
// 64 lowercase hex characters. Identities of that shape are refused so a
// payout can never be credited to a custody slot.
func IsDerivedAddress(v string) bool {
	if len(v) != 2*sha256.Size {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// DeriveWithSalt reproduces an address from seeds and a stored salt.
func DeriveWithSalt(salt uint8, seeds ...string) string {
	sum := digest(salt, seeds)
	return hex.EncodeToString(sum[:])
}

func digest(salt uint8, seeds []string) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(addressDomain))
	for _, s := range seeds {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	h.Write([]byte{salt})
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// RoomAddress derives the address of the room (organizer, roomID).
func RoomAddress(organizer, roomID string) (string, uint8) {
	return Derive(SeedRoom, organizer, roomID)
}

// VaultAddress derives the vault slot owned by room.
func VaultAddress(room string) (string, uint8) {
	return Derive(SeedVault, room)
}

// ClaimAddress derives the address of claim (room, claimant, claimID).
func ClaimAddress(room, claimant, claimID string) string {
	addr, _ := Derive(SeedClaim, room, claimant, claimID)
	return addr
}

// WhitelistAddress derives the single whitelist slot.
func WhitelistAddress() (string, uint8) {
	return Derive(SeedWhitelist)
}
