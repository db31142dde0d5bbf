package session

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"rag-docqa-platform/internal/retrieval"
	"rag-docqa-platform/utils"
)

const snapshotFormat = 1

var snapshotMagic = [2]byte{'R', 'S'}

var errBadSnapshot = errors.New("malformed session snapshot")

type snapshot struct {
	Format    int                   `bson:"format"`
	ID        string                `bson:"id"`
	Documents []Document            `bson:"documents"`
	Index     *retrieval.IndexState `bson:"index,omitempty"`
	BuiltAt   time.Time             `bson:"built_at"`
}

var algorithms = []utils.CompressionAlgorithm{utils.CompressionNone, utils.CompressionBrotli, utils.CompressionGzip}

// Encode serialises a session: a 3 byte header (magic, compression) followed
// by the BSON document, brotli compressed when large enough.
func Encode(s *Session) ([]byte, error) {
	snap := snapshot{Format: snapshotFormat, ID: s.ID, Documents: s.Documents, BuiltAt: s.BuiltAt}
	if idx, ok := s.Bundle.(*retrieval.ReadyIndex); ok {
		st := idx.State()
		snap.Index = &st
	}

	raw, err := bson.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	alg := utils.GetBestCompression(raw)
	packed, err := utils.CompressData(raw, alg)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(packed)+3)
	out = append(out, snapshotMagic[0], snapshotMagic[1], algorithmByte(alg))
	return append(out, packed...), nil
}

// Decode is the inverse of Encode.
func Decode(data []byte) (*Session, error) {
	if len(data) < 3 || data[0] != snapshotMagic[0] || data[1] != snapshotMagic[1] {
		return nil, errBadSnapshot
	}
	if int(data[2]) >= len(algorithms) {
		return nil, fmt.Errorf("%w: unknown compression %d", errBadSnapshot, data[2])
	}

	raw, err := utils.DecompressData(data[3:], algorithms[data[2]])
	if err != nil {
		return nil, err
	}

	var snap snapshot
	if err := bson.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Format != snapshotFormat {
		return nil, fmt.Errorf("%w: format %d", errBadSnapshot, snap.Format)
	}

	var bundle retrieval.Bundle = retrieval.NotReady{}
	if snap.Index != nil {
		bundle, err = retrieval.RestoreIndex(*snap.Index)
		if err != nil {
			return nil, err
		}
	}

	return &Session{ID: snap.ID, Documents: snap.Documents, Bundle: bundle, BuiltAt: snap.BuiltAt}, nil
}

func algorithmByte(alg utils.CompressionAlgorithm) byte {
	for i, a := range algorithms {
		if a == alg {
			return byte(i)
		}
	}
	return 0
}
