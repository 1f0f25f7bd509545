package session

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

const (
	// EnvelopeMagic marks a session file; it reads as "EPHS" on disk.
	EnvelopeMagic = uint32(0x53485045)
	// EnvelopeVersion is the current envelope format version
	EnvelopeVersion = byte(1)
	// HeaderSize is the fixed size of the envelope header in bytes
	HeaderSize = 22
)

// Envelope header layout, little endian:
//
//	[0:4)   magic
//	[4:5)   version
//	[5:6)   codec id
//	[6:14)  payload length
//	[14:22) xxhash64 of the payload
//
// The checksum covers the payload as stored, before decompression, so a
// damaged file is rejected without running the decompressor on it.

// EncodeEnvelope frames a (possibly compressed) payload for storage.
func EncodeEnvelope(codec CodecID, payload []byte) []byte {
	result := make([]byte, HeaderSize+len(payload))

	binary.LittleEndian.PutUint32(result[0:4], EnvelopeMagic)
	result[4] = EnvelopeVersion
	result[5] = byte(codec)
	binary.LittleEndian.PutUint64(result[6:14], uint64(len(payload)))
	binary.LittleEndian.PutUint64(result[14:22], xxhash.Sum64(payload))
	copy(result[HeaderSize:], payload)

	return result
}

// DecodeEnvelope validates the header and checksum and returns the codec
// and the payload. The payload aliases data.
func DecodeEnvelope(data []byte) (CodecID, []byte, error) {
	if len(data) < HeaderSize {
		return CodecNone, nil, fmt.Errorf("%w: envelope too small: %d bytes, expected at least %d",
			ErrCorruptSession, len(data), HeaderSize)
	}

	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != EnvelopeMagic {
		return CodecNone, nil, fmt.Errorf("%w: invalid magic: %#x, expected %#x",
			ErrCorruptSession, magic, EnvelopeMagic)
	}
	if version := data[4]; version != EnvelopeVersion {
		return CodecNone, nil, fmt.Errorf("%w: unsupported version %d",
			ErrCorruptSession, version)
	}

	codec := CodecID(data[5])
	if codec > CodecZstd {
		return CodecNone, nil, fmt.Errorf("%w: %v", ErrUnknownCodec, codec)
	}

	length := binary.LittleEndian.Uint64(data[6:14])
	if uint64(len(data)-HeaderSize) != length {
		return CodecNone, nil, fmt.Errorf("%w: payload length mismatch: header says %d, file has %d",
			ErrCorruptSession, length, len(data)-HeaderSize)
	}

	payload := data[HeaderSize:]
	expected := binary.LittleEndian.Uint64(data[14:22])
	if actual := xxhash.Sum64(payload); actual != expected {
		return CodecNone, nil, fmt.Errorf("%w: checksum mismatch: file has %d, calculated %d",
			ErrCorruptSession, expected, actual)
	}

	return codec, payload, nil
}
