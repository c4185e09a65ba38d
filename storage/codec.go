// Codec for the KV row encoding of model.Message / model.IdRegistryEvent.
// Grounded on the teacher's storage/badger/operation/codec.go: msgpack
// encoding with optional snappy compression. The core itself only requires
// that some encoding round-trips the same bits per message (§6); this one
// flattens model.Body's type-tagged union into a single wire struct the way
// a flatbuffer table with optional fields would, rather than reaching for
// msgpack's (lossier, reflection-heavy) interface encoding.
package storage

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack"

	"github.com/sagar-a16z/hub/model"
)

// CompressRows controls whether encoded rows are snappy-compressed before
// being written to the KV store. Tests that want to inspect raw bytes can
// flip this off.
var CompressRows = true

type wireMessage struct {
	Fid             []byte
	Type            uint8
	Timestamp       uint32
	Hash            []byte
	HashScheme      uint8
	Signature       []byte
	SignatureScheme uint8
	Signer          []byte

	// Body fields; only the ones relevant to Type are populated.
	TargetSigner     []byte
	Text             string
	ParentFid        []byte
	ParentTsHash     []byte
	MentionFids      [][]byte
	MentionIndices   []uint32
	CastTargetTsHash []byte
	ReactionType     uint8
	TargetCastFid    []byte
	TargetCastTsHash []byte
	TargetFid        []byte
	VerifyAddress    []byte
	VerifyBlockHash  []byte
	VerifySignature  []byte
	UserDataType     uint8
	UserDataValue    string
}

// EncodeMessage serializes msg to its KV row value.
func EncodeMessage(msg *model.Message) ([]byte, error) {
	w := wireMessage{
		Fid:             msg.Fid.Bytes(),
		Type:            uint8(msg.Type),
		Timestamp:       msg.Timestamp,
		Hash:            msg.Hash,
		HashScheme:      uint8(msg.HashScheme),
		Signature:       msg.Signature,
		SignatureScheme: uint8(msg.SignatureScheme),
		Signer:          msg.Signer,
	}
	switch b := msg.Body.(type) {
	case model.SignerBody:
		w.TargetSigner = b.Signer
	case model.CastAddBody:
		w.Text = b.Text
		if b.ParentCastId != nil {
			w.ParentFid = b.ParentCastId.Fid.Bytes()
			w.ParentTsHash = b.ParentCastId.TsHash
		}
		for _, f := range b.MentionFids {
			w.MentionFids = append(w.MentionFids, f.Bytes())
		}
		w.MentionIndices = b.MentionIndices
	case model.CastRemoveBody:
		w.CastTargetTsHash = b.TargetTsHash
	case model.ReactionBody:
		w.ReactionType = uint8(b.Type)
		w.TargetCastFid = b.TargetCastId.Fid.Bytes()
		w.TargetCastTsHash = b.TargetCastId.TsHash
	case model.AmpBody:
		w.TargetFid = b.TargetFid.Bytes()
	case model.VerificationAddBody:
		w.VerifyAddress = b.Address
		w.VerifyBlockHash = b.BlockHash
		w.VerifySignature = b.Signature
	case model.VerificationRemoveBody:
		w.VerifyAddress = b.Address
	case model.UserDataBody:
		w.UserDataType = uint8(b.Type)
		w.UserDataValue = b.Value
	case nil:
		// SignerRemove/CastRemove-style messages with no extra payload
		// beyond what's already carried (handled by individual cases above);
		// an entirely nil body is valid for types whose Remove carries the
		// whole target in the dedicated field.
	default:
		return nil, fmt.Errorf("storage: unknown message body type %T", b)
	}

	raw, err := msgpack.Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("could not encode message: %w", err)
	}
	if CompressRows {
		return snappy.Encode(nil, raw), nil
	}
	return raw, nil
}

// DecodeMessage deserializes a KV row value produced by EncodeMessage.
func DecodeMessage(val []byte) (*model.Message, error) {
	raw := val
	if CompressRows {
		var err error
		raw, err = snappy.Decode(nil, val)
		if err != nil {
			return nil, fmt.Errorf("could not uncompress message: %w", err)
		}
	}
	var w wireMessage
	if err := msgpack.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("could not decode message: %w", err)
	}

	msg := &model.Message{
		Fid:             model.FidFromBytes(w.Fid),
		Type:            model.MessageType(w.Type),
		Timestamp:       w.Timestamp,
		Hash:            w.Hash,
		HashScheme:      model.HashScheme(w.HashScheme),
		Signature:       w.Signature,
		SignatureScheme: model.SignatureScheme(w.SignatureScheme),
		Signer:          w.Signer,
	}

	switch msg.Type {
	case model.MessageTypeSignerAdd, model.MessageTypeSignerRemove:
		msg.Body = model.SignerBody{Signer: w.TargetSigner}
	case model.MessageTypeCastAdd:
		body := model.CastAddBody{Text: w.Text, MentionIndices: w.MentionIndices}
		if w.ParentTsHash != nil {
			body.ParentCastId = &model.CastId{Fid: model.FidFromBytes(w.ParentFid), TsHash: w.ParentTsHash}
		}
		for _, f := range w.MentionFids {
			body.MentionFids = append(body.MentionFids, model.FidFromBytes(f))
		}
		msg.Body = body
	case model.MessageTypeCastRemove:
		msg.Body = model.CastRemoveBody{TargetTsHash: w.CastTargetTsHash}
	case model.MessageTypeReactionAdd, model.MessageTypeReactionRemove:
		msg.Body = model.ReactionBody{
			Type: model.ReactionType(w.ReactionType),
			TargetCastId: model.CastId{
				Fid:    model.FidFromBytes(w.TargetCastFid),
				TsHash: w.TargetCastTsHash,
			},
		}
	case model.MessageTypeAmpAdd, model.MessageTypeAmpRemove:
		msg.Body = model.AmpBody{TargetFid: model.FidFromBytes(w.TargetFid)}
	case model.MessageTypeVerificationAddEthAddress:
		msg.Body = model.VerificationAddBody{
			Address:   w.VerifyAddress,
			BlockHash: w.VerifyBlockHash,
			Signature: w.VerifySignature,
		}
	case model.MessageTypeVerificationRemove:
		msg.Body = model.VerificationRemoveBody{Address: w.VerifyAddress}
	case model.MessageTypeUserDataAdd:
		msg.Body = model.UserDataBody{Type: model.UserDataType(w.UserDataType), Value: w.UserDataValue}
	}

	return msg, nil
}

type wireIdRegistryEvent struct {
	Type            uint8
	BlockNumber     uint64
	LogIndex        uint32
	BlockHash       []byte
	TransactionHash []byte
	Fid             []byte
	From            []byte
	To              []byte
}

func EncodeIdRegistryEvent(evt *model.IdRegistryEvent) ([]byte, error) {
	w := wireIdRegistryEvent{
		Type:            uint8(evt.Type),
		BlockNumber:     evt.BlockNumber,
		LogIndex:        evt.LogIndex,
		BlockHash:       evt.BlockHash,
		TransactionHash: evt.TransactionHash,
		Fid:             evt.Fid.Bytes(),
		From:            evt.From,
		To:              evt.To,
	}
	raw, err := msgpack.Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("could not encode id registry event: %w", err)
	}
	if CompressRows {
		return snappy.Encode(nil, raw), nil
	}
	return raw, nil
}

func DecodeIdRegistryEvent(val []byte) (*model.IdRegistryEvent, error) {
	raw := val
	if CompressRows {
		var err error
		raw, err = snappy.Decode(nil, val)
		if err != nil {
			return nil, fmt.Errorf("could not uncompress id registry event: %w", err)
		}
	}
	var w wireIdRegistryEvent
	if err := msgpack.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("could not decode id registry event: %w", err)
	}
	return &model.IdRegistryEvent{
		Type:            model.IdRegistryEventType(w.Type),
		BlockNumber:     w.BlockNumber,
		LogIndex:        w.LogIndex,
		BlockHash:       w.BlockHash,
		TransactionHash: w.TransactionHash,
		Fid:             model.FidFromBytes(w.Fid),
		From:            w.From,
		To:              w.To,
	}, nil
}
