package telegram

import (
	"github.com/gotd/td/tg"
)

// Chat IDs are exposed in the marked form Telegram clients use:
// basic groups as -id, channels and supergroups as -(1000000000000+id).
const channelMarkOffset int64 = 1000000000000

// MarkChat returns the marked ID of a basic group
func MarkChat(id int64) int64 {
	return -id
}

// MarkChannel returns the marked ID of a channel or supergroup
func MarkChannel(id int64) int64 {
	return -(channelMarkOffset + id)
}

// markedPeerID returns the marked ID for peer, or false for unknown peer types
func markedPeerID(peer tg.PeerClass) (int64, bool) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID, true
	case *tg.PeerChat:
		return MarkChat(p.ChatID), true
	case *tg.PeerChannel:
		return MarkChannel(p.ChannelID), true
	default:
		return 0, false
	}
}

// fallbackInputPeer builds an input peer for IDs that need no access hash
func fallbackInputPeer(marked int64) (tg.InputPeerClass, bool) {
	if marked < 0 && marked > -channelMarkOffset {
		return &tg.InputPeerChat{ChatID: -marked}, true
	}
	return nil, false
}

// entityPeers extracts input peers from the entities attached to an update
func entityPeers(e tg.Entities) map[int64]tg.InputPeerClass {
	out := make(map[int64]tg.InputPeerClass, len(e.Users)+len(e.Chats)+len(e.Channels))
	for id, u := range e.Users {
		out[id] = &tg.InputPeerUser{UserID: id, AccessHash: u.AccessHash}
	}
	for id := range e.Chats {
		out[MarkChat(id)] = &tg.InputPeerChat{ChatID: id}
	}
	for id, c := range e.Channels {
		out[MarkChannel(id)] = &tg.InputPeerChannel{ChannelID: id, AccessHash: c.AccessHash}
	}
	return out
}
