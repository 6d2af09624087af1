// Package segment persists an index statistics store as a single snapshot
// file and restores it.
//
// Layout: a 64-byte little-endian header, the payload and a 32-byte footer.
// The payload is the store's documents encoded as deterministic CBOR,
// optionally compressed. The footer holds the BLAKE3 digest of the
// uncompressed payload, which doubles as the snapshot id: the same corpus
// and schema always produce the same id regardless of compression.
package segment

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

const (
	MagicBytes    uint32 = 0x4d445346 // "FSDM" little-endian
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32

	// MaxUncompressedSize caps the payload size a header may declare.
	MaxUncompressedSize int64 = 1 << 32
	// An LZ4 block never expands input by more than this factor.
	lz4MaxRatio int64 = 255
)

// Compression selects the payload codec.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression resolves a codec name.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	}
	return 0, apperrors.Configf("unknown snapshot compression %q", name)
}

// Header is the fixed-size preamble of a snapshot file.
type Header struct {
	Magic            uint32
	Version          uint32
	Compression      Compression
	PositionalMask   uint8
	StoredMask       uint8
	DocCount         uint32
	CreatedAt        int64
	PayloadOffset    int64
	PayloadSize      int64
	UncompressedSize int64
}

func (h Header) marshal() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	b[8] = byte(h.Compression)
	b[9] = h.PositionalMask
	b[10] = h.StoredMask
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.PayloadOffset))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PayloadSize))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.UncompressedSize))
	return b
}

// uncompressedBound is the largest payload size the header's codec could
// produce from PayloadSize bytes.
func (h Header) uncompressedBound() int64 {
	switch h.Compression {
	case CompressionNone:
		return h.PayloadSize
	case CompressionLZ4:
		return min(h.PayloadSize*lz4MaxRatio, MaxUncompressedSize)
	}
	return MaxUncompressedSize
}

func unmarshalHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: file shorter than header", apperrors.ErrCorruptSnapshot)
	}
	h := Header{
		Magic:            binary.LittleEndian.Uint32(b[0:4]),
		Version:          binary.LittleEndian.Uint32(b[4:8]),
		Compression:      Compression(b[8]),
		PositionalMask:   b[9],
		StoredMask:       b[10],
		DocCount:         binary.LittleEndian.Uint32(b[12:16]),
		CreatedAt:        int64(binary.LittleEndian.Uint64(b[16:24])),
		PayloadOffset:    int64(binary.LittleEndian.Uint64(b[24:32])),
		PayloadSize:      int64(binary.LittleEndian.Uint64(b[32:40])),
		UncompressedSize: int64(binary.LittleEndian.Uint64(b[40:48])),
	}
	if h.Magic != MagicBytes {
		return Header{}, fmt.Errorf("%w: bad magic bytes %x", apperrors.ErrCorruptSnapshot, h.Magic)
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: unsupported version %d", apperrors.ErrCorruptSnapshot, h.Version)
	}
	return h, nil
}

// Info describes a written or loaded snapshot.
type Info struct {
	Path        string
	ID          string
	Docs        int
	Bytes       int64
	Compression Compression
	CreatedAt   time.Time
}

func snapshotID(digest [32]byte) string {
	return hex.EncodeToString(digest[:16])
}

type payload struct {
	Docs []payloadDoc `cbor:"1,keyasint"`
}

type payloadDoc struct {
	ID     string         `cbor:"1,keyasint"`
	Fields []payloadField `cbor:"2,keyasint,omitempty"`
}

// payloadField keeps Tokens for positional fields and Freqs for
// frequency-only ones; the other is derived on load.
type payloadField struct {
	Field  uint8          `cbor:"1,keyasint"`
	Tokens []string       `cbor:"2,keyasint,omitempty"`
	Freqs  map[string]int `cbor:"3,keyasint,omitempty"`
	Stored []string       `cbor:"4,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("segment: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 1<<31 - 1,
		MaxMapPairs:      1<<31 - 1,
	}.DecMode()
	if err != nil {
		panic("segment: CBOR decoder initialization failed: " + err.Error())
	}
}
