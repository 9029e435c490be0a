package model

import (
	"slices"
	"time"
)

// WhitelistHeaderLen is the fixed size of an empty whitelist slot:
// discriminator, member count and salt.
const WhitelistHeaderLen = 8 + 4 + 1

// WhitelistMemberLen is the slot growth per member.
const WhitelistMemberLen = 32

// Whitelist is the set of identities allowed to vote. Members keeps
// insertion order and never holds duplicates.
type Whitelist struct {
	Address   string    `json:"address"`
	Admin     string    `json:"admin"`
	Members   []string  `json:"members"`
	Salt      uint8     `json:"salt"`
	CreatedAt time.Time `json:"created_at"`
}

// Contains reports whether identity is a member.
func (w *Whitelist) Contains(identity string) bool {
	return slices.Contains(w.Members, identity)
}

// WhitelistDataLen returns the slot size needed to hold n members.
func WhitelistDataLen(n int) int {
	return WhitelistHeaderLen + n*WhitelistMemberLen
}
