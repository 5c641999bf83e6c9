package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const WAVHeaderSize = 44

var ErrInvalidWAV = errors.New("invalid wav data")

// WAVHeader is the canonical 44-byte RIFF/WAVE PCM header.
type WAVHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

func NewWAVHeader(dataLen, sampleRate, channels, bitDepth int) WAVHeader {
	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + dataLen),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * bitDepth / 8),
		BlockAlign:    uint16(channels * bitDepth / 8),
		BitsPerSample: uint16(bitDepth),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataLen),
	}
}

// ToWav prefixes pcm with a canonical PCM header.
func ToWav(pcm []byte, sampleRate, channels, bitDepth int) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+len(pcm)))
	// Writes of a fixed-size struct into a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, NewWAVHeader(len(pcm), sampleRate, channels, bitDepth))
	buf.Write(pcm)
	return buf.Bytes()
}

// DecodeWav parses a canonical header and returns it with the data chunk.
func DecodeWav(data []byte) (WAVHeader, []byte, error) {
	var h WAVHeader
	if len(data) < WAVHeaderSize {
		return h, nil, fmt.Errorf("%w: %d bytes is shorter than a header", ErrInvalidWAV, len(data))
	}
	if err := binary.Read(bytes.NewReader(data[:WAVHeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if string(h.ChunkID[:]) != "RIFF" || string(h.Format[:]) != "WAVE" {
		return h, nil, fmt.Errorf("%w: missing RIFF/WAVE markers", ErrInvalidWAV)
	}
	if string(h.Subchunk1ID[:]) != "fmt " || string(h.Subchunk2ID[:]) != "data" {
		return h, nil, fmt.Errorf("%w: non-canonical chunk layout", ErrInvalidWAV)
	}
	if h.AudioFormat != 1 {
		return h, nil, fmt.Errorf("%w: audio format %d is not PCM", ErrInvalidWAV, h.AudioFormat)
	}

	body := data[WAVHeaderSize:]
	if int(h.Subchunk2Size) < len(body) {
		body = body[:h.Subchunk2Size]
	}
	return h, body, nil
}
