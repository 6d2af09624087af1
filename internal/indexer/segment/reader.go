package segment

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

// Reader holds a fully decoded snapshot.
type Reader struct {
	info  Info
	stats *index.Statistics
}

// OpenReader reads and verifies the snapshot at path and rebuilds the
// store. Any structural problem is reported as ErrCorruptSnapshot.
func OpenReader(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	header, err := unmarshalHeader(data)
	if err != nil {
		return nil, err
	}
	end := header.PayloadOffset + header.PayloadSize
	if header.PayloadOffset < int64(HeaderSize) || header.PayloadSize < 0 || end+int64(FooterSize) != int64(len(data)) {
		return nil, fmt.Errorf("%w: payload bounds do not match file size %d", apperrors.ErrCorruptSnapshot, len(data))
	}
	if header.UncompressedSize < 0 || header.UncompressedSize > header.uncompressedBound() {
		return nil, fmt.Errorf("%w: declared payload size %d out of range for %s",
			apperrors.ErrCorruptSnapshot, header.UncompressedSize, header.Compression)
	}
	raw, err := decompress(data[header.PayloadOffset:end], header.Compression, int(header.UncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptSnapshot, err)
	}
	digest := blake3.Sum256(raw)
	if !bytes.Equal(digest[:], data[end:end+int64(FooterSize)]) {
		return nil, fmt.Errorf("%w: digest mismatch", apperrors.ErrCorruptSnapshot)
	}

	stats, err := Decode(raw, document.SchemaFromMask(header.PositionalMask, header.StoredMask))
	if err != nil {
		return nil, err
	}
	if stats.NumDocs() != int(header.DocCount) {
		return nil, fmt.Errorf("%w: header declares %d documents, payload has %d",
			apperrors.ErrCorruptSnapshot, header.DocCount, stats.NumDocs())
	}
	return &Reader{
		info: Info{
			Path:        path,
			ID:          snapshotID(digest),
			Docs:        stats.NumDocs(),
			Bytes:       int64(len(data)),
			Compression: header.Compression,
			CreatedAt:   time.Unix(header.CreatedAt, 0).UTC(),
		},
		stats: stats,
	}, nil
}

// Decode rebuilds a store from a CBOR payload produced by Encode.
func Decode(raw []byte, schema document.Schema) (*index.Statistics, error) {
	var p payload
	if err := decMode.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", apperrors.ErrCorruptSnapshot, err)
	}
	entries := make([]index.Entry, len(p.Docs))
	for i, pd := range p.Docs {
		e := index.Entry{ID: pd.ID}
		for _, pf := range pd.Fields {
			f := document.Field(pf.Field)
			if !f.Valid() {
				return nil, fmt.Errorf("%w: document %q has unknown field %d", apperrors.ErrCorruptSnapshot, pd.ID, pf.Field)
			}
			if pf.Tokens != nil {
				e.Vectors[f] = index.NewTermVector(pf.Tokens, true)
			} else {
				e.Vectors[f] = index.TermVectorFromFreqs(pf.Freqs)
			}
			e.Stored[f] = pf.Stored
		}
		entries[i] = e
	}
	stats, err := index.FromEntries(schema, entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptSnapshot, err)
	}
	return stats, nil
}

// Info describes the loaded snapshot.
func (r *Reader) Info() Info {
	return r.info
}

// Statistics returns the restored store.
func (r *Reader) Statistics() *index.Statistics {
	return r.stats
}
