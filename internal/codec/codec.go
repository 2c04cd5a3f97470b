package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// compressThreshold is the size cutover (spec §4.3: "≈100 bytes") above
// which the codec stores the zstd-compressed form instead of the raw gob
// form. It is measured on the blocks' field contents, not on the gob
// encoding, whose type descriptors alone take more than 100 bytes.
const compressThreshold = 100

// flag bytes prefix the stored form so Decode can self-describe on read,
// regardless of whether the writer had compression enabled.
const (
	flagRaw  byte = 0
	flagZstd byte = 1
)

// The shared encoder and decoder, each built once on first use, amortize
// zstd's setup cost across calls;
// a single codec instance may serialize thousands of entities during a
// bulk import.
var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

func getEncoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return encoder
}

func getDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		decoder, _ = zstd.NewReader(nil)
	})
	return decoder
}

// Encode serializes an ordered observation list. When compress is true and
// the summed length of the blocks' fields exceeds compressThreshold, the
// compressed form is stored instead; otherwise the plain gob form is
// stored. The result is self-describing: Decode never needs to be told
// which branch was taken.
func Encode(blocks []Block, compress bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(blocks); err != nil {
		return nil, fmt.Errorf("codec: encode observations: %w", err)
	}
	raw := buf.Bytes()

	contentSize := 0
	for _, b := range blocks {
		contentSize += len(b.Kind) + len(b.Text) + len(b.Data) + len(b.MimeType) + len(b.URI) + len(b.Title) + len(b.Description)
	}
	if !compress || contentSize <= compressThreshold {
		out := make([]byte, 0, len(raw)+1)
		out = append(out, flagRaw)
		out = append(out, raw...)
		return out, nil
	}

	compressed := getEncoder().EncodeAll(raw, make([]byte, 0, len(raw)))
	out := make([]byte, 0, len(compressed)+1)
	out = append(out, flagZstd)
	out = append(out, compressed...)
	return out, nil
}

// Decode reverses Encode, branching on the leading flag byte regardless of
// the caller's current compression setting.
func Decode(data []byte) ([]Block, error) {
	if len(data) == 0 {
		return nil, nil
	}
	flag, payload := data[0], data[1:]

	var raw []byte
	switch flag {
	case flagRaw:
		raw = payload
	case flagZstd:
		decoded, err := getDecoder().DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("codec: zstd decode: %w", err)
		}
		raw = decoded
	default:
		return nil, fmt.Errorf("codec: unrecognized encoding flag %d", flag)
	}

	var blocks []Block
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&blocks); err != nil {
		return nil, fmt.Errorf("codec: decode observations: %w", err)
	}
	return blocks, nil
}

// CanonicalEqual reports whether two encoded forms decode to the same
// ordered, deduplicated observation list — used by L5 export/import
// round-trip checks where byte-identical encodings aren't required.
func CanonicalEqual(a, b []byte) (bool, error) {
	blocksA, err := Decode(a)
	if err != nil {
		return false, err
	}
	blocksB, err := Decode(b)
	if err != nil {
		return false, err
	}
	if len(blocksA) != len(blocksB) {
		return false, nil
	}
	for i := range blocksA {
		if !blocksA[i].Equal(blocksB[i]) {
			return false, nil
		}
	}
	return true, nil
}
