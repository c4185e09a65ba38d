package model

import (
	"encoding/binary"
)

// CanonicalData returns the deterministic byte encoding of msg's signable
// fields (fid, type, timestamp, body) — the "data" whose blake3 digest is
// msg.Hash and whose hash is what msg.Signature signs. The on-chain wire
// format is a flat buffer (§6) that the core treats as opaque; this is a
// minimal stand-in canonical encoder for the one place the core itself must
// reproduce it, to verify hash and signature (§4.4 step 1). It has no
// relation to the KV row codec in package storage, which is free to use any
// round-tripping encoding.
func CanonicalData(msg *Message) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, msg.Fid.Bytes()...)
	buf = append(buf, 0)
	buf = append(buf, byte(msg.Type))
	ts := make([]byte, 4)
	binary.BigEndian.PutUint32(ts, msg.Timestamp)
	buf = append(buf, ts...)
	buf = append(buf, encodeBody(msg.Body)...)
	return buf
}

func encodeBody(body Body) []byte {
	switch b := body.(type) {
	case SignerBody:
		return b.Signer
	case CastAddBody:
		out := []byte(b.Text)
		if b.ParentCastId != nil {
			out = append(out, b.ParentCastId.Fid.Bytes()...)
			out = append(out, b.ParentCastId.TsHash...)
		}
		for _, f := range b.MentionFids {
			out = append(out, f.Bytes()...)
		}
		return out
	case CastRemoveBody:
		return b.TargetTsHash
	case ReactionBody:
		out := []byte{byte(b.Type)}
		out = append(out, b.TargetCastId.Fid.Bytes()...)
		out = append(out, b.TargetCastId.TsHash...)
		return out
	case AmpBody:
		return b.TargetFid.Bytes()
	case VerificationAddBody:
		out := append([]byte{}, b.Address...)
		out = append(out, b.BlockHash...)
		return out
	case VerificationRemoveBody:
		return b.Address
	case UserDataBody:
		return append([]byte{byte(b.Type)}, []byte(b.Value)...)
	default:
		return nil
	}
}
