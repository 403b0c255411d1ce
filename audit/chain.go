package audit

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

// ErrChainBroken is returned by Verify when a record does not link to its
// predecessor or its hash does not match its content.
var ErrChainBroken = errors.New("audit: hash chain broken")

// Link assigns seq, PrevHash and Hash to r, chaining it after a record whose
// hash is prev. Backends call Link inside the commit that appends r.
func Link(r *Record, seq int64, prev string) {
	r.Seq = seq
	r.PrevHash = prev
	r.Hash = Digest(r)
}

// Digest computes the hash of r over its content and PrevHash. ChangedAt
// contributes at millisecond precision, the finest every backend keeps.
func Digest(r *Record) string {
	h := blake3.New()
	var head [16]byte
	binary.BigEndian.PutUint64(head[:8], uint64(r.Seq))                  //nolint:gosec // seq is never negative
	binary.BigEndian.PutUint64(head[8:], uint64(r.ChangedAt.UnixMilli())) //nolint:gosec // post-epoch timestamps
	_, _ = h.Write(head[:])
	for _, s := range []string{
		r.PrevHash,
		r.ID.String(),
		string(r.EntityType),
		r.EntityID,
		r.Field,
		r.OldValue,
		r.NewValue,
		r.ChangedBy,
		r.Reason,
	} {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(s))) //nolint:gosec // field lengths fit
		_, _ = h.Write(n[:])
		_, _ = h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks that records form an unbroken chain starting after a record
// with hash prev and sequence prevSeq. It returns the hash and sequence of
// the last record so that verification can continue page by page.
func Verify(records []*Record, prevSeq int64, prev string) (int64, string, error) {
	for _, r := range records {
		if r.Seq <= prevSeq {
			return prevSeq, prev, fmt.Errorf("%w: seq %d not after %d", ErrChainBroken, r.Seq, prevSeq)
		}
		if r.PrevHash != prev {
			return prevSeq, prev, fmt.Errorf("%w: seq %d does not link to its predecessor", ErrChainBroken, r.Seq)
		}
		if Digest(r) != r.Hash {
			return prevSeq, prev, fmt.Errorf("%w: seq %d content does not match hash", ErrChainBroken, r.Seq)
		}
		prevSeq, prev = r.Seq, r.Hash
	}
	return prevSeq, prev, nil
}
