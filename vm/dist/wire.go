package dist

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical options so equal snapshots encode to equal
// bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalSnapshot serializes a Snapshot to CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("dist: unmarshal snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("dist: unsupported snapshot version %d", s.Version)
	}
	return &s, nil
}

// Hash returns the SHA-256 of the snapshot's canonical encoding with
// process-local uids removed, so equal hierarchies hash equally across
// processes.
func (s *Snapshot) Hash() ([32]byte, error) {
	content := Snapshot{Version: s.Version, Classes: make([]ClassRecord, len(s.Classes))}
	for i, rec := range s.Classes {
		rec.UID = 0
		content.Classes[i] = rec
	}
	data, err := cborEncMode.Marshal(&content)
	if err != nil {
		return [32]byte{}, fmt.Errorf("dist: hash snapshot: %w", err)
	}
	return sha256.Sum256(data), nil
}
