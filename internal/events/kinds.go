package events

import "strconv"

// Kind is the closed set of event kinds the account produces or reads
type Kind int

const (
	KindMetadata        Kind = 0
	KindTextNote        Kind = 1
	KindContactList     Kind = 3
	KindEncryptedDM     Kind = 4
	KindDeletion        Kind = 5
	KindRepost          Kind = 6
	KindReaction        Kind = 7
	KindChannelCreate   Kind = 40
	KindChannelMetadata Kind = 41
	KindChannelMessage  Kind = 42
	KindReport          Kind = 1984
	KindZapRequest      Kind = 9734
	KindRelayList       Kind = 10002
)

// Known reports whether k is one of the kinds above
func (k Kind) Known() bool {
	switch k {
	case KindMetadata, KindTextNote, KindContactList, KindEncryptedDM,
		KindDeletion, KindRepost, KindReaction,
		KindChannelCreate, KindChannelMetadata, KindChannelMessage,
		KindReport, KindZapRequest, KindRelayList:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindMetadata:
		return "metadata"
	case KindTextNote:
		return "text_note"
	case KindContactList:
		return "contact_list"
	case KindEncryptedDM:
		return "encrypted_dm"
	case KindDeletion:
		return "deletion"
	case KindRepost:
		return "repost"
	case KindReaction:
		return "reaction"
	case KindChannelCreate:
		return "channel_create"
	case KindChannelMetadata:
		return "channel_metadata"
	case KindChannelMessage:
		return "channel_message"
	case KindReport:
		return "report"
	case KindZapRequest:
		return "zap_request"
	case KindRelayList:
		return "relay_list"
	default:
		return "kind_" + strconv.Itoa(int(k))
	}
}

// KindOf returns the closed kind of a raw event kind
func KindOf(kind int) (Kind, bool) {
	k := Kind(kind)
	return k, k.Known()
}
