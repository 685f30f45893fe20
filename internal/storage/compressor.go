package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compressor encodes the whole storage document before it reaches disk.
type Compressor interface {
	Compress(doc []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Close()
}

type ZstdCompression struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewZstdCompressor() (Compressor, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("storage: zstd encoder: %w", err)
	}
	// Documents are small and read under a file lock, one at a time.
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("storage: zstd decoder: %w", err)
	}
	return &ZstdCompression{encoder: encoder, decoder: decoder}, nil
}

func (z *ZstdCompression) Compress(doc []byte) ([]byte, error) {
	return z.encoder.EncodeAll(doc, nil), nil
}

func (z *ZstdCompression) Decompress(data []byte) ([]byte, error) {
	return z.decoder.DecodeAll(data, nil)
}

func (z *ZstdCompression) Close() {
	_ = z.encoder.Close()
	z.decoder.Close()
}
