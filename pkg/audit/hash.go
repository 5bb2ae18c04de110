package audit

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// HashRecord computes the hex-encoded SHA-256 content hash of a record.
// The hash covers every field except ContentHash itself, including
// PrevHash, so corrupting any stored field or re-parenting a record
// breaks verification.
//
// Field boundaries are length-prefixed so no two distinct field sets can
// collide by concatenation.
func HashRecord(r *Record) string {
	h := sha256.New()

	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], r.Sequence)
	h.Write(seq[:])

	writeField(h, r.ID)
	writeField(h, string(r.Type))
	writeField(h, r.Timestamp.UTC().Format(time.RFC3339Nano))
	writeField(h, r.Actor)
	writeField(h, r.Scope.String())
	writeField(h, r.Summary)
	writeField(h, string(r.Payload))
	writeField(h, r.PrevHash)

	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h interface{ Write([]byte) (int, error) }, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
