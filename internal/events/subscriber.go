package events

import "encoding/json"

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers raw event payloads on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}

// Decode unmarshals a payload received from a Subscriber into the event
// struct for its topic. Unknown topics decode into a generic map.
func Decode(topic string, data []byte) (any, error) {
	var v any
	switch topic {
	case TopicRoomCreated:
		v = &RoomCreated{}
	case TopicRoomJoined:
		v = &RoomJoined{}
	case TopicRoomStarted, TopicRoomCancelled, TopicRoomResolved:
		v = &RoomStatusChanged{}
	case TopicVaultDeposited:
		v = &VaultDeposited{}
	case TopicClaimSubmitted:
		v = &ClaimSubmitted{}
	case TopicClaimVoted:
		v = &ClaimVoted{}
	case TopicClaimResolved:
		v = &ClaimResolved{}
	case TopicWhitelistInitialized, TopicWhitelistAdded, TopicWhitelistRemoved:
		v = &WhitelistChanged{}
	case TopicReputationUpdated:
		v = &ReputationUpdated{}
	default:
		m := map[string]any{}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}
