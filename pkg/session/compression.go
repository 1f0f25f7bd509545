package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danielribes/ephp/pkg/config"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrUnknownCodec is returned when an unsupported compression codec is specified
	ErrUnknownCodec = errors.New("unknown compression codec")

	// ErrInvalidCompressedData is returned when compressed data cannot be decompressed
	ErrInvalidCompressedData = errors.New("invalid compressed data")
)

// CodecID identifies the compression applied to a session payload. The
// value is stored in the envelope header, so the numbering is part of the
// on-disk format.
type CodecID byte

const (
	CodecNone   CodecID = 0
	CodecSnappy CodecID = 1
	CodecZstd   CodecID = 2
)

// String returns the configuration name of the codec.
func (c CodecID) String() string {
	switch c {
	case CodecNone:
		return config.CompressionNone
	case CodecSnappy:
		return config.CompressionSnappy
	case CodecZstd:
		return config.CompressionZstd
	default:
		return fmt.Sprintf("codec(%d)", byte(c))
	}
}

// CodecFromName maps a configuration compression name onto a codec id.
func CodecFromName(name string) (CodecID, error) {
	switch name {
	case config.CompressionNone:
		return CodecNone, nil
	case config.CompressionSnappy:
		return CodecSnappy, nil
	case config.CompressionZstd:
		return CodecZstd, nil
	default:
		return CodecNone, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// CompressionManager provides methods to compress and decompress session payloads
type CompressionManager struct {
	// ZSTD encoder and decoder
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder

	// Mutex to protect encoder/decoder access
	mu sync.Mutex
}

// NewCompressionManager creates a new compressor with initialized codecs
func NewCompressionManager() (*CompressionManager, error) {
	zstdEncoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ZSTD encoder: %w", err)
	}

	zstdDecoder, err := zstd.NewReader(nil)
	if err != nil {
		zstdEncoder.Close()
		return nil, fmt.Errorf("failed to create ZSTD decoder: %w", err)
	}

	return &CompressionManager{
		zstdEncoder: zstdEncoder,
		zstdDecoder: zstdDecoder,
	}, nil
}

// Compress compresses data using the specified codec
func (c *CompressionManager) Compress(data []byte, codec CodecID) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch codec {
	case CodecNone:
		return data, nil

	case CodecZstd:
		return c.zstdEncoder.EncodeAll(data, nil), nil

	case CodecSnappy:
		return snappy.Encode(nil, data), nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownCodec, codec)
	}
}

// Decompress decompresses data using the specified codec
func (c *CompressionManager) Decompress(data []byte, codec CodecID) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch codec {
	case CodecNone:
		return data, nil

	case CodecZstd:
		result, err := c.zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCompressedData, err)
		}
		return result, nil

	case CodecSnappy:
		result, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCompressedData, err)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownCodec, codec)
	}
}

// Close releases resources used by the compressor
func (c *CompressionManager) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.zstdEncoder != nil {
		c.zstdEncoder.Close()
		c.zstdEncoder = nil
	}

	if c.zstdDecoder != nil {
		c.zstdDecoder.Close()
		c.zstdDecoder = nil
	}

	return nil
}
