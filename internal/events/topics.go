package events

import "strings"

// Topics lists every topic the server publishes.
var Topics = []string{
	TopicRoomCreated, TopicRoomJoined, TopicRoomStarted, TopicRoomCancelled, TopicRoomResolved,
	TopicVaultDeposited,
	TopicClaimSubmitted, TopicClaimVoted, TopicClaimResolved,
	TopicWhitelistInitialized, TopicWhitelistAdded, TopicWhitelistRemoved,
	TopicReputationUpdated,
}

// MatchTopic matches dot-separated topics NATS style: "*" matches one
// segment and a trailing ">" matches one or more.
func MatchTopic(pattern, topic string) bool {
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i == len(pat)-1 && i < len(top)
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// MatchAny reports whether topic matches one of patterns. No patterns
// matches everything.
func MatchAny(patterns []string, topic string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if MatchTopic(p, topic) {
			return true
		}
	}
	return false
}

// Expand returns the known topics matched by patterns, in Topics order.
func Expand(patterns []string) []string {
	var out []string
	for _, t := range Topics {
		if MatchAny(patterns, t) {
			out = append(out, t)
		}
	}
	return out
}
