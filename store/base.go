// Package store implements the per-type CRDT stores (§4.2, §4.3): Signer,
// Cast, Reaction, Amp, Verification and UserData each wrap the same merge/
// prune/revoke skeleton, parameterized only by their target-key derivation
// and their Add/Remove type pair. Grounded on the teacher's
// storage/badger/identities.go shape (a thin typed wrapper around a shared
// cache/transaction helper) generalized from a single cached entity to a
// full CRDT set with a secondary by-signer index.
package store

import (
	"fmt"

	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/metrics"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage"
)

// TargetFunc derives the CRDT target key bytes for msg (signer key, cast
// tsHash, (reactionType,castId), target-user-id, eth address, or dataType —
// see §3). It must be defined for both halves of an Add/Remove pair and
// return the identical target for the same logical entity.
type TargetFunc func(msg *model.Message) ([]byte, error)

// DefaultPruneSizeLimit is the default per-fid row budget for a store that
// doesn't override it explicitly.
const DefaultPruneSizeLimit = 2500

// targetEntry is the secondary-index value at a target key: which message
// (by tsHash) currently holds that target, and whether it's the Add or the
// Remove half of the pair.
type targetEntry struct {
	isAdd  bool
	tsHash []byte
}

func encodeTargetEntry(isAdd bool, tsHash []byte) []byte {
	flag := byte(0)
	if isAdd {
		flag = 1
	}
	return append([]byte{flag}, tsHash...)
}

func decodeTargetEntry(val []byte) targetEntry {
	return targetEntry{isAdd: val[0] == 1, tsHash: val[1:]}
}

// Store is the shared CRDT engine behind every typed store.
type Store struct {
	db       storage.KV
	bus      *events.Bus
	metrics  metrics.Collector
	postfix  storage.UserPostfix
	addType  model.MessageType
	// removeType is model.MessageTypeUnspecified for add-only stores (UserData).
	removeType   model.MessageType
	target       TargetFunc
	pruneLimit   int
	resourceName string
}

func newStore(db storage.KV, bus *events.Bus, mc metrics.Collector, resourceName string, postfix storage.UserPostfix, addType, removeType model.MessageType, target TargetFunc, pruneLimit int) *Store {
	if pruneLimit <= 0 {
		pruneLimit = DefaultPruneSizeLimit
	}
	return &Store{
		db: db, bus: bus, metrics: mc, resourceName: resourceName,
		postfix: postfix, addType: addType, removeType: removeType,
		target: target, pruneLimit: pruneLimit,
	}
}

func (s *Store) hasRemove() bool { return s.removeType != model.MessageTypeUnspecified }

// Merge applies msg to this store per the comparator-based conflict
// resolution of §4.2/§4.3. It is commutative and idempotent: replaying the
// same multiset of messages in any order converges to the same KV state.
func (s *Store) Merge(msg *model.Message) error {
	if msg.Type != s.addType && msg.Type != s.removeType {
		return model.ErrValidationFailure("%s store cannot merge message type %s", s.resourceName, msg.Type)
	}
	target, err := s.target(msg)
	if err != nil {
		return model.ErrValidationFailure("could not derive target: %v", err)
	}

	var winner, loser *model.Message
	applied := false

	txErr := s.db.Update(func(tx storage.Txn) error {
		winner, loser, applied = nil, nil, false

		tkey := storage.TargetKey(msg.Fid, s.postfix, target)

		raw, err := tx.Get(tkey)
		if err == storage.ErrNotFound {
			// No existing record at this target: msg always wins.
			winner, loser, applied = msg, nil, true
			return s.writeWinner(tx, winner, loser, target, tkey)
		}
		if err != nil {
			return err
		}
		entry := decodeTargetEntry(raw)
		current, err := s.loadMessage(tx, msg.Fid, entry.tsHash)
		if err != nil {
			return err
		}
		if model.CompareMessages(msg, current) > 0 {
			winner, loser, applied = msg, current, true
			return s.writeWinner(tx, winner, loser, target, tkey)
		}
		// msg loses to the current record: no-op.
		return nil
	})
	if txErr != nil {
		return model.WrapUnknown(txErr)
	}

	if applied {
		if loser != nil {
			s.bus.PruneMessage(loser)
			s.metrics.MessagePruned(s.resourceName)
		}
		s.bus.MergeMessage(winner)
		s.metrics.MessageMerged(s.resourceName)
	}
	return nil
}

func (s *Store) writeWinner(tx storage.Txn, winner, loser *model.Message, target, tkey []byte) error {
	if loser != nil {
		if err := s.deleteRow(tx, loser); err != nil {
			return err
		}
	}
	val, err := storage.EncodeMessage(winner)
	if err != nil {
		return fmt.Errorf("could not encode message: %w", err)
	}
	if err := tx.Set(storage.MessageKey(winner.Fid, s.postfix, winner.TsHash()), val); err != nil {
		return err
	}
	if err := tx.Set(tkey, encodeTargetEntry(winner.Type == s.addType, winner.TsHash())); err != nil {
		return err
	}
	return tx.Set(storage.BySignerKey(winner.Fid, winner.Signer, winner.TsHash()), []byte{byte(winner.Type)})
}

func (s *Store) deleteRow(tx storage.Txn, msg *model.Message) error {
	if err := tx.Delete(storage.MessageKey(msg.Fid, s.postfix, msg.TsHash())); err != nil {
		return err
	}
	return tx.Delete(storage.BySignerKey(msg.Fid, msg.Signer, msg.TsHash()))
}

func (s *Store) loadMessage(tx storage.Txn, fid model.Fid, tsHash []byte) (*model.Message, error) {
	val, err := tx.Get(storage.MessageKey(fid, s.postfix, tsHash))
	if err != nil {
		return nil, err
	}
	return storage.DecodeMessage(val)
}

// GetAdd returns the current Add message for target, or model.CodeNotFound.
func (s *Store) GetAdd(fid model.Fid, target []byte) (*model.Message, error) {
	return s.getByPolarity(fid, target, true)
}

// GetRemove returns the current Remove message for target, or model.CodeNotFound.
func (s *Store) GetRemove(fid model.Fid, target []byte) (*model.Message, error) {
	return s.getByPolarity(fid, target, false)
}

func (s *Store) getByPolarity(fid model.Fid, target []byte, wantAdd bool) (*model.Message, error) {
	var out *model.Message
	err := s.db.View(func(tx storage.Txn) error {
		raw, err := tx.Get(storage.TargetKey(fid, s.postfix, target))
		if err == storage.ErrNotFound {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		entry := decodeTargetEntry(raw)
		if entry.isAdd != wantAdd {
			return storage.ErrNotFound
		}
		out, err = s.loadMessage(tx, fid, entry.tsHash)
		return err
	})
	if err == storage.ErrNotFound {
		return nil, model.ErrNotFound("no %s message for target", s.resourceName)
	}
	if err != nil {
		return nil, model.WrapUnknown(err)
	}
	return out, nil
}

// GetAllByFid returns every message of this store's type(s) for fid, in
// ascending tsHash (chronological) order.
func (s *Store) GetAllByFid(fid model.Fid) ([]*model.Message, error) {
	var out []*model.Message
	prefix := storage.MessagePrefix(fid, s.postfix)
	err := s.db.View(func(tx storage.Txn) error {
		return tx.Iterate(prefix, prefix, func(key, val []byte) error {
			msg, err := storage.DecodeMessage(val)
			if err != nil {
				return err
			}
			out = append(out, msg)
			return nil
		})
	})
	if err != nil {
		return nil, model.WrapUnknown(err)
	}
	return out, nil
}

// PruneMessages deletes the earliest messages for fid, in ascending tsHash
// order, until at most s.pruneLimit remain, emitting pruneMessage for each
// (§4.2 "Pruning", invariant #8).
func (s *Store) PruneMessages(fid model.Fid) error {
	var pruned []*model.Message
	prefix := storage.MessagePrefix(fid, s.postfix)

	err := s.db.Update(func(tx storage.Txn) error {
		var all []*model.Message
		if err := tx.Iterate(prefix, prefix, func(key, val []byte) error {
			msg, err := storage.DecodeMessage(val)
			if err != nil {
				return err
			}
			all = append(all, msg)
			return nil
		}); err != nil {
			return err
		}
		if len(all) <= s.pruneLimit {
			return nil
		}
		toRemove := len(all) - s.pruneLimit
		for i := 0; i < toRemove; i++ {
			msg := all[i]
			target, err := s.target(msg)
			if err != nil {
				return err
			}
			if err := s.deleteRow(tx, msg); err != nil {
				return err
			}
			if err := tx.Delete(storage.TargetKey(msg.Fid, s.postfix, target)); err != nil {
				return err
			}
			pruned = append(pruned, msg)
		}
		return nil
	})
	if err != nil {
		return model.WrapUnknown(err)
	}
	for _, msg := range pruned {
		s.bus.PruneMessage(msg)
		s.metrics.MessagePruned(s.resourceName)
	}
	return nil
}

// RevokeTsHash deletes the message at fid/tsHash if present, inside its own
// transaction, and emits revokeMessage. It reports (nil, nil) if absent.
// Used both for custody-transfer revocation (§4.1) and cascading signer
// revocation (§4.2).
func (s *Store) RevokeTsHash(fid model.Fid, tsHash []byte) (*model.Message, error) {
	var revoked *model.Message
	err := s.db.Update(func(tx storage.Txn) error {
		msg, err := s.loadMessage(tx, fid, tsHash)
		if err == storage.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := s.target(msg)
		if err != nil {
			return err
		}
		if err := s.deleteRow(tx, msg); err != nil {
			return err
		}
		if err := tx.Delete(storage.TargetKey(msg.Fid, s.postfix, target)); err != nil {
			return err
		}
		revoked = msg
		return nil
	})
	if err != nil {
		return nil, model.WrapUnknown(err)
	}
	if revoked != nil {
		s.bus.RevokeMessage(revoked)
		s.metrics.MessageRevoked(s.resourceName)
	}
	return revoked, nil
}

// Postfix returns the row-table postfix this store owns, for Registry
// dispatch by message type.
func (s *Store) Postfix() storage.UserPostfix { return s.postfix }
