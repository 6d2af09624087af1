package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/index"
)

// Writer serialises a Statistics store into a snapshot file.
type Writer struct {
	path        string
	compression Compression
}

// NewWriter creates a Writer targeting path.
func NewWriter(path string, compression Compression) *Writer {
	return &Writer{path: path, compression: compression}
}

// Encode returns the deterministic CBOR payload of stats.
func Encode(stats *index.Statistics) ([]byte, error) {
	p := payload{Docs: make([]payloadDoc, 0, stats.NumDocs())}
	for ord := 0; ord < stats.NumDocs(); ord++ {
		e, _ := stats.Entry(uint32(ord))
		pd := payloadDoc{ID: e.ID}
		for _, f := range document.AllFields {
			tv := e.Vectors[f]
			stored := e.Stored[f]
			if tv.Length == 0 && len(stored) == 0 {
				continue
			}
			pf := payloadField{Field: uint8(f), Stored: stored}
			if tv.Positional() {
				pf.Tokens = tv.Tokens
			} else {
				pf.Freqs = tv.Freqs
			}
			pd.Fields = append(pd.Fields, pf)
		}
		p.Docs = append(p.Docs, pd)
	}
	data, err := encMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot payload: %w", err)
	}
	return data, nil
}

// Write atomically replaces the snapshot file with stats. It writes to a
// .tmp file first and renames on success.
func (w *Writer) Write(stats *index.Statistics) (Info, error) {
	raw, err := Encode(stats)
	if err != nil {
		return Info{}, err
	}
	digest := blake3.Sum256(raw)
	body, codec, err := compress(raw, w.compression)
	if err != nil {
		return Info{}, err
	}

	positional, stored := stats.Schema().Mask()
	created := time.Now().UTC()
	header := Header{
		Magic:            MagicBytes,
		Version:          FormatVersion,
		Compression:      codec,
		PositionalMask:   positional,
		StoredMask:       stored,
		DocCount:         uint32(stats.NumDocs()),
		CreatedAt:        created.Unix(),
		PayloadOffset:    int64(HeaderSize),
		PayloadSize:      int64(len(body)),
		UncompressedSize: int64(len(raw)),
	}

	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Info{}, fmt.Errorf("creating snapshot directory: %w", err)
		}
	}
	tmpPath := w.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return Info{}, fmt.Errorf("creating temp snapshot file: %w", err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(tmpPath)
	}
	for _, part := range [][]byte{header.marshal(), body, digest[:]} {
		if _, err := f.Write(part); err != nil {
			cleanup()
			return Info{}, fmt.Errorf("writing snapshot: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return Info{}, fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return Info{}, fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return Info{}, fmt.Errorf("renaming snapshot file: %w", err)
	}
	return Info{
		Path:        w.path,
		ID:          snapshotID(digest),
		Docs:        stats.NumDocs(),
		Bytes:       int64(HeaderSize + len(body) + FooterSize),
		Compression: codec,
		CreatedAt:   time.Unix(created.Unix(), 0).UTC(),
	}, nil
}
