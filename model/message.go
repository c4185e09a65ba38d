package model

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Fid is an opaque per-user identifier. It is modeled as a string so it can
// be used directly as a map key; callers that need the raw bytes use Bytes().
type Fid string

func FidFromBytes(b []byte) Fid { return Fid(b) }

func (f Fid) Bytes() []byte { return []byte(f) }

func (f Fid) String() string { return hex.EncodeToString(f.Bytes()) }

// MessageType enumerates every message kind the hub understands. Reaction
// types are always present in the type system (Open Question (a), §9 of the
// spec) — whether the engine routes them is a runtime feature flag, not a
// compile-time omission.
type MessageType uint8

const (
	MessageTypeUnspecified MessageType = iota
	MessageTypeSignerAdd
	MessageTypeSignerRemove
	MessageTypeCastAdd
	MessageTypeCastRemove
	MessageTypeReactionAdd
	MessageTypeReactionRemove
	MessageTypeAmpAdd
	MessageTypeAmpRemove
	MessageTypeVerificationAddEthAddress
	MessageTypeVerificationRemove
	MessageTypeUserDataAdd
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeSignerAdd:
		return "SignerAdd"
	case MessageTypeSignerRemove:
		return "SignerRemove"
	case MessageTypeCastAdd:
		return "CastAdd"
	case MessageTypeCastRemove:
		return "CastRemove"
	case MessageTypeReactionAdd:
		return "ReactionAdd"
	case MessageTypeReactionRemove:
		return "ReactionRemove"
	case MessageTypeAmpAdd:
		return "AmpAdd"
	case MessageTypeAmpRemove:
		return "AmpRemove"
	case MessageTypeVerificationAddEthAddress:
		return "VerificationAddEthAddress"
	case MessageTypeVerificationRemove:
		return "VerificationRemove"
	case MessageTypeUserDataAdd:
		return "UserDataAdd"
	default:
		return "Unspecified"
	}
}

// IsAdd reports whether t is the "Add" half of an add/remove CRDT pair, or
// the sole member of an add-only set (UserDataAdd).
func (t MessageType) IsAdd() bool {
	switch t {
	case MessageTypeSignerAdd, MessageTypeCastAdd, MessageTypeReactionAdd,
		MessageTypeAmpAdd, MessageTypeVerificationAddEthAddress, MessageTypeUserDataAdd:
		return true
	default:
		return false
	}
}

// IsRemove reports whether t is the "Remove" half of an add/remove CRDT pair.
func (t MessageType) IsRemove() bool {
	switch t {
	case MessageTypeSignerRemove, MessageTypeCastRemove, MessageTypeReactionRemove,
		MessageTypeAmpRemove, MessageTypeVerificationRemove:
		return true
	default:
		return false
	}
}

// CastId identifies a cast by the fid that authored it and its tsHash.
type CastId struct {
	Fid    Fid
	TsHash []byte
}

func (c CastId) String() string {
	return fmt.Sprintf("%s/%s", c.Fid, hex.EncodeToString(c.TsHash))
}

// ReactionType enumerates the kinds of reaction a ReactionAdd/Remove can
// carry. Gated behind engine.Config.FeatureReactions at the routing layer,
// not here — the type itself is always available.
type ReactionType uint8

const (
	ReactionTypeUnspecified ReactionType = iota
	ReactionTypeLike
	ReactionTypeRecast
)

// UserDataType enumerates the profile fields UserDataAdd can set. There is
// no paired Remove: a later UserDataAdd for the same type strictly
// supersedes the earlier one (Open Question (b), §9).
type UserDataType uint8

const (
	UserDataTypeUnspecified UserDataType = iota
	UserDataTypePfp
	UserDataTypeDisplay
	UserDataTypeBio
	UserDataTypeUrl
	UserDataTypeUsername
)

// Body is the type-specific payload of a message. Concrete implementations
// are SignerBody, CastAddBody, CastRemoveBody, ReactionBody, AmpBody,
// VerificationAddBody, VerificationRemoveBody and UserDataBody.
type Body interface {
	isMessageBody()
}

type SignerBody struct {
	Signer []byte // Ed25519 public key authorized or revoked by this message
}

func (SignerBody) isMessageBody() {}

type CastAddBody struct {
	Text           string
	ParentCastId   *CastId
	MentionFids    []Fid
	MentionIndices []uint32
}

func (CastAddBody) isMessageBody() {}

type CastRemoveBody struct {
	TargetTsHash []byte
}

func (CastRemoveBody) isMessageBody() {}

type ReactionBody struct {
	Type         ReactionType
	TargetCastId CastId
}

func (ReactionBody) isMessageBody() {}

type AmpBody struct {
	TargetFid Fid
}

func (AmpBody) isMessageBody() {}

type VerificationAddBody struct {
	Address   []byte // Ethereum address being verified
	BlockHash []byte
	Signature []byte
}

func (VerificationAddBody) isMessageBody() {}

type VerificationRemoveBody struct {
	Address []byte
}

func (VerificationRemoveBody) isMessageBody() {}

type UserDataBody struct {
	Type  UserDataType
	Value string
}

func (UserDataBody) isMessageBody() {}

// SignatureScheme and HashScheme record which pure-function primitive
// produced Signature/Hash. The core treats both as opaque enums; it never
// validates the primitives themselves (spec §1 non-goals).
type SignatureScheme uint8

const (
	SignatureSchemeEd25519 SignatureScheme = iota
	SignatureSchemeEip712
)

type HashScheme uint8

const (
	HashSchemeBlake3 HashScheme = iota
)

// Message is a signed record in the per-user corpus. Its identity is TsHash,
// the total-orderable (timestamp ‖ hash) pair described in the glossary.
type Message struct {
	Fid             Fid
	Type            MessageType
	Timestamp       uint32 // seconds since the farcaster epoch
	Body            Body
	Hash            []byte
	HashScheme      HashScheme
	Signature       []byte
	SignatureScheme SignatureScheme
	Signer          []byte // Ed25519 public key of the signing delegate or custody address
}

// TsHash is timestamp ‖ hash, big-endian timestamp prefix, as defined in §3.
func (m *Message) TsHash() []byte {
	return TsHash(m.Timestamp, m.Hash)
}

func TsHash(timestamp uint32, hash []byte) []byte {
	out := make([]byte, 4+len(hash))
	binary.BigEndian.PutUint32(out[:4], timestamp)
	copy(out[4:], hash)
	return out
}

// SyncID is the 10-digit decimal farcaster timestamp of the message
// concatenated with the hex encoding of its tsHash, per the glossary. It is
// the trie key: every character is a valid base-16 digit (decimal digits are
// a subset of hex digits), so the whole string can be walked nibble-by-nibble
// by the 16-ary trie.
func (m *Message) SyncID() string {
	return SyncID(m.Timestamp, m.TsHash())
}

func SyncID(timestamp uint32, tsHash []byte) string {
	return fmt.Sprintf("%010d%s", timestamp, hex.EncodeToString(tsHash))
}

// CompareMessages implements the comparator from §4.2 step 4: higher
// timestamp wins; at equal timestamp a Remove beats an Add; otherwise (equal
// timestamp, same polarity) the greater hash, compared bytewise, wins.
// Returns >0 if a wins, <0 if b wins, 0 if truly identical.
func CompareMessages(a, b *Message) int {
	if a.Timestamp != b.Timestamp {
		if a.Timestamp > b.Timestamp {
			return 1
		}
		return -1
	}
	if a.Type.IsRemove() != b.Type.IsRemove() {
		if a.Type.IsRemove() {
			return 1
		}
		return -1
	}
	return compareBytes(a.Hash, b.Hash)
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] > b[i] {
				return 1
			}
			return -1
		}
	}
	switch {
	case len(a) > len(b):
		return 1
	case len(a) < len(b):
		return -1
	default:
		return 0
	}
}
