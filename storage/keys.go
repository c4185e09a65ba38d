package storage

import "github.com/sagar-a16z/hub/model"

// RootPrefix discriminates the tables held in the single flat KV namespace,
// per §6.
type RootPrefix byte

const (
	RootPrefixIdRegistryEvent          RootPrefix = 1
	RootPrefixIdRegistryEventByCustody RootPrefix = 2
	RootPrefixUser                     RootPrefix = 3
)

// UserPostfix enumerates the sub-tables nested under User|fid|....
type UserPostfix byte

const (
	PostfixSignerMessage       UserPostfix = 1
	PostfixCastMessage         UserPostfix = 2
	PostfixReactionMessage     UserPostfix = 3
	PostfixAmpMessage          UserPostfix = 4
	PostfixVerificationMessage UserPostfix = 5
	PostfixUserDataMessage     UserPostfix = 6
	PostfixBySigner            UserPostfix = 7
	PostfixByTarget            UserPostfix = 8
)

// PostfixForType maps a message type to the postfix of the table holding
// its rows.
func PostfixForType(t model.MessageType) UserPostfix {
	switch t {
	case model.MessageTypeSignerAdd, model.MessageTypeSignerRemove:
		return PostfixSignerMessage
	case model.MessageTypeCastAdd, model.MessageTypeCastRemove:
		return PostfixCastMessage
	case model.MessageTypeReactionAdd, model.MessageTypeReactionRemove:
		return PostfixReactionMessage
	case model.MessageTypeAmpAdd, model.MessageTypeAmpRemove:
		return PostfixAmpMessage
	case model.MessageTypeVerificationAddEthAddress, model.MessageTypeVerificationRemove:
		return PostfixVerificationMessage
	case model.MessageTypeUserDataAdd:
		return PostfixUserDataMessage
	default:
		return 0
	}
}

// IdRegistryEventKey builds IdRegistryEvent|fid.
func IdRegistryEventKey(fid model.Fid) []byte {
	return concat([]byte{byte(RootPrefixIdRegistryEvent)}, fid.Bytes())
}

// IdRegistryEventByCustodyKey builds IdRegistryEventByCustodyAddress|addr.
func IdRegistryEventByCustodyKey(addr []byte) []byte {
	return concat([]byte{byte(RootPrefixIdRegistryEventByCustody)}, addr)
}

// MessagePrefix builds User|fid|postfix, the range-scan prefix for every row
// in that fid's table of the given type.
func MessagePrefix(fid model.Fid, postfix UserPostfix) []byte {
	return concat([]byte{byte(RootPrefixUser)}, fid.Bytes(), []byte{byte(postfix)})
}

// MessageKey builds User|fid|postfix|tsHash, the primary row key for a
// message.
func MessageKey(fid model.Fid, postfix UserPostfix, tsHash []byte) []byte {
	return concat(MessagePrefix(fid, postfix), tsHash)
}

// BySignerPrefix builds User|fid|BySigner|signer, the range-scan prefix used
// by revokeMessagesBySigner.
func BySignerPrefix(fid model.Fid, signer []byte) []byte {
	return concat([]byte{byte(RootPrefixUser)}, fid.Bytes(), []byte{byte(PostfixBySigner)}, signer)
}

// BySignerKey builds User|fid|BySigner|signer|tsHash.
func BySignerKey(fid model.Fid, signer []byte, tsHash []byte) []byte {
	return concat(BySignerPrefix(fid, signer), tsHash)
}

// TargetPrefix builds User|fid|ByTarget|postfix, the range-scan prefix for
// a store's whole by-target index. Nested under PostfixByTarget as a
// sibling of the type's own message postfix -- the same top-level-byte
// convention BySignerPrefix uses -- so a by-target row never shares a byte
// prefix with MessagePrefix(fid, postfix) and doesn't get swept into a
// tx.Iterate(prefix, prefix, ...) scan over the message rows themselves.
func TargetPrefix(fid model.Fid, postfix UserPostfix) []byte {
	return concat([]byte{byte(RootPrefixUser)}, fid.Bytes(), []byte{byte(PostfixByTarget)}, []byte{byte(postfix)})
}

// TargetKey builds User|fid|ByTarget|postfix|target, the secondary index a
// typed store uses to find whichever of {Add, Remove} currently holds a
// CRDT target, without scanning every row (§4.2 invariant: at most one of
// the pair exists per target at a time, so one index suffices; the stored
// value records which half is current).
func TargetKey(fid model.Fid, postfix UserPostfix, target []byte) []byte {
	return concat(TargetPrefix(fid, postfix), target)
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
