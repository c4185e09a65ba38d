// Package identity implements the identity store (§4.1): IdRegistry event
// ingestion, custody transfer, and revocation scheduling on transfer.
// Grounded on the teacher's storage/badger/my_receipts.go: a primary row
// (there, ExecutionReceipts keyed by receipt ID; here, IdRegistryEvent
// keyed by fid) plus a secondary index resolving a different field
// (there, blockID; here, custody address) to the same row, both written in
// the same transaction as the primary write.
package identity

import (
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage"
)

// CustodyAddressHex formats a raw 20-byte custody address using Ethereum's
// EIP-55 mixed-case checksum encoding, the same display format fid custody
// addresses use on the L2 contracts this event feed is read from.
func CustodyAddressHex(addr []byte) string {
	return ethcommon.BytesToAddress(addr).Hex()
}

// Revoker is the subset of store.Registry the identity store needs: the
// ability to revoke every message signed by a given key. Declared here as
// an interface so identity does not depend on the store package directly.
type Revoker interface {
	RevokeMessagesBySigner(fid model.Fid, signer []byte) ([]*model.Message, error)
}

type Store struct {
	db      storage.KV
	bus     *events.Bus
	revoker Revoker
}

func New(db storage.KV, bus *events.Bus, revoker Revoker) *Store {
	return &Store{db: db, bus: bus, revoker: revoker}
}

// Current returns the fid's current IdRegistry event, or model.CodeNotFound
// if none has ever been merged.
func (s *Store) Current(fid model.Fid) (*model.IdRegistryEvent, error) {
	var out *model.IdRegistryEvent
	err := s.db.View(func(tx storage.Txn) error {
		val, err := tx.Get(storage.IdRegistryEventKey(fid))
		if err != nil {
			return err
		}
		out, err = storage.DecodeIdRegistryEvent(val)
		return err
	})
	if err == storage.ErrNotFound {
		return nil, model.ErrNotFound("no custody event for fid")
	}
	if err != nil {
		return nil, model.WrapUnknown(err)
	}
	return out, nil
}

// AllFids returns every fid with a current IdRegistry event, in ascending
// key order. Grounded on the same range-scan-over-a-root-prefix shape
// store.Store.GetAllByFid uses, narrowed here to the single top-level byte
// RootPrefixIdRegistryEvent rather than a per-fid message prefix, since the
// primary row is already keyed IdRegistryEvent|fid with nothing nested
// under it.
func (s *Store) AllFids() ([]model.Fid, error) {
	var out []model.Fid
	prefix := []byte{byte(storage.RootPrefixIdRegistryEvent)}
	err := s.db.View(func(tx storage.Txn) error {
		return tx.Iterate(prefix, prefix, func(key, val []byte) error {
			evt, err := storage.DecodeIdRegistryEvent(val)
			if err != nil {
				return err
			}
			out = append(out, evt.Fid)
			return nil
		})
	})
	if err != nil {
		return nil, model.WrapUnknown(err)
	}
	return out, nil
}

// ByCustody returns the fid currently held by custody address addr, or
// model.CodeNotFound.
func (s *Store) ByCustody(addr []byte) (*model.IdRegistryEvent, error) {
	var out *model.IdRegistryEvent
	err := s.db.View(func(tx storage.Txn) error {
		val, err := tx.Get(storage.IdRegistryEventByCustodyKey(addr))
		if err != nil {
			return err
		}
		out, err = storage.DecodeIdRegistryEvent(val)
		return err
	})
	if err == storage.ErrNotFound {
		return nil, model.ErrNotFound("no fid for custody address")
	}
	if err != nil {
		return nil, model.WrapUnknown(err)
	}
	return out, nil
}

// Merge ingests e per §4.1's merge rule: first writer wins an empty slot;
// a strictly later (blockNumber, logIndex) replaces the current event and
// schedules revocation of messages signed under the previous custody;
// anything else is either a no-op or a bad_request.conflict.
func (s *Store) Merge(e *model.IdRegistryEvent) error {
	var (
		prev    *model.IdRegistryEvent
		applied bool
	)

	txErr := s.db.Update(func(tx storage.Txn) error {
		key := storage.IdRegistryEventKey(e.Fid)
		raw, err := tx.Get(key)
		if err == storage.ErrNotFound {
			applied = true
			return s.writeCurrent(tx, e)
		}
		if err != nil {
			return err
		}
		cur, err := storage.DecodeIdRegistryEvent(raw)
		if err != nil {
			return err
		}
		order := e.Order(cur)
		if order == 0 {
			if !e.SameChainRecord(cur) {
				return model.ErrConflict("id registry event %d/%d conflicts with existing chain record", e.BlockNumber, e.LogIndex)
			}
			return nil // identical re-delivery, no-op
		}
		if order < 0 {
			return nil // strictly older, no-op
		}
		prev = cur
		applied = true
		// The previous custody address no longer holds this fid.
		if err := tx.Delete(storage.IdRegistryEventByCustodyKey(cur.To)); err != nil {
			return err
		}
		return s.writeCurrent(tx, e)
	})
	if txErr != nil {
		if he, ok := txErr.(*model.HubError); ok {
			return he
		}
		return model.WrapUnknown(txErr)
	}

	if !applied {
		return nil
	}
	s.bus.MergeIdRegistryEvent(e)

	if prev != nil && prev.To != nil {
		// Two-phase transfer (§4.1 step 3): don't block the replace on
		// revocation, but schedule it synchronously right after commit so
		// it's observable through revokeMessage events before Merge returns.
		if _, err := s.revoker.RevokeMessagesBySigner(e.Fid, prev.To); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeCurrent(tx storage.Txn, e *model.IdRegistryEvent) error {
	val, err := storage.EncodeIdRegistryEvent(e)
	if err != nil {
		return err
	}
	if err := tx.Set(storage.IdRegistryEventKey(e.Fid), val); err != nil {
		return err
	}
	return tx.Set(storage.IdRegistryEventByCustodyKey(e.To), val)
}
