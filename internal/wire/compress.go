package wire

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// CompressThreshold is the minimum uncompressed byte-array length that
// MaybeCompressBytes tries to turn into a ValueBytesCompressed body. Below it the
// zstd frame overhead is not worth paying.
const CompressThreshold = 4096

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder

	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

func getEncoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("wire: zstd encoder init: %v", err))
		}
		encoder = enc
	})
	return encoder
}

func getDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			panic(fmt.Sprintf("wire: zstd decoder init: %v", err))
		}
		decoder = dec
	})
	return decoder
}

// MaybeCompressBytes returns a ValueBytesCompressed Value when raw is at
// least CompressThreshold bytes and its zstd encoding is smaller than
// raw, otherwise a plain ValueBytes Value. Used
// for large by-value numeric arrays that don't qualify for the
// shared-memory path (different hosts, or shared memory disabled).
func MaybeCompressBytes(raw []byte) Value {
	if len(raw) < CompressThreshold {
		return Value{Kind: ValueBytes, Bytes: raw}
	}
	compressed := getEncoder().EncodeAll(raw, nil)
	if len(compressed) >= len(raw) {
		return Value{Kind: ValueBytes, Bytes: raw}
	}
	return Value{Kind: ValueBytesCompressed, Int: int64(len(raw)), Bytes: compressed}
}

// DecompressValue returns v's raw bytes, inflating a ValueBytesCompressed
// body if needed.
func DecompressValue(v Value) ([]byte, error) {
	switch v.Kind {
	case ValueBytes:
		return v.Bytes, nil
	case ValueBytesCompressed:
		out, err := getDecoder().DecodeAll(v.Bytes, make([]byte, 0, v.Int))
		if err != nil {
			return nil, fmt.Errorf("wire: zstd decode: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("wire: value kind %d is not a byte array", v.Kind)
	}
}
