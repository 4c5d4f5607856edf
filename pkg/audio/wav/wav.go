// Package wav reads and writes RIFF/WAVE audio containers.
//
// Decode walks the RIFF chunk list rather than assuming the canonical
// 44-byte layout, so files with LIST/INFO or fact chunks in front of the
// data chunk parse correctly. Multi-channel input is downmixed to mono by
// averaging; 8-bit, 24-bit, 32-bit integer, and 32-bit float PCM are
// converted to 16-bit.
//
// Encode produces the format the recording collaborator emits: mono,
// 16-bit signed little-endian PCM.
package wav

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Audio format codes from the fmt chunk.
const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

// Decode parses a WAV byte buffer into mono PCM16 samples and the
// container's sample rate.
func Decode(data []byte) ([]int16, int, error) {
	if len(data) < 12 {
		return nil, 0, fmt.Errorf("wav: data too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("wav: not a RIFF/WAVE container")
	}

	var (
		haveFmt       bool
		audioFormat   uint16
		numChannels   int
		sampleRate    int
		bitsPerSample int
		pcmData       []byte
	)

	// Walk chunks. Chunk sizes are padded to even byte boundaries.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			// Tolerate a truncated final data chunk; some recorders
			// write the header before knowing the final length.
			if id == "data" && body < len(data) {
				size = len(data) - body
			} else {
				return nil, 0, fmt.Errorf("wav: chunk %q overruns buffer", id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("wav: fmt chunk too short: %d bytes", size)
			}
			audioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			numChannels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			if audioFormat == formatExtensible && size >= 40 {
				// WAVE_FORMAT_EXTENSIBLE: the real format is the first
				// two bytes of the subformat GUID.
				audioFormat = binary.LittleEndian.Uint16(data[body+24 : body+26])
			}
			haveFmt = true
		case "data":
			pcmData = data[body : body+size]
		}

		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt {
		return nil, 0, fmt.Errorf("wav: missing fmt chunk")
	}
	if pcmData == nil {
		return nil, 0, fmt.Errorf("wav: missing data chunk")
	}
	if len(pcmData) == 0 {
		return nil, 0, fmt.Errorf("wav: empty data chunk")
	}
	if numChannels <= 0 {
		return nil, 0, fmt.Errorf("wav: invalid channel count %d", numChannels)
	}
	if sampleRate <= 0 {
		return nil, 0, fmt.Errorf("wav: invalid sample rate %d", sampleRate)
	}

	samples, err := toMono16(pcmData, audioFormat, bitsPerSample, numChannels)
	if err != nil {
		return nil, 0, err
	}
	if len(samples) == 0 {
		return nil, 0, fmt.Errorf("wav: no samples decoded")
	}
	return samples, sampleRate, nil
}

// toMono16 converts interleaved PCM of the given format to mono int16.
func toMono16(data []byte, format uint16, bits, channels int) ([]int16, error) {
	var bytesPerSample int
	switch {
	case format == formatPCM && bits == 16:
		bytesPerSample = 2
	case format == formatPCM && bits == 8:
		bytesPerSample = 1
	case format == formatPCM && bits == 24:
		bytesPerSample = 3
	case format == formatPCM && bits == 32:
		bytesPerSample = 4
	case format == formatIEEEFloat && bits == 32:
		bytesPerSample = 4
	default:
		return nil, fmt.Errorf("wav: unsupported format %d with %d bits per sample", format, bits)
	}

	frameBytes := bytesPerSample * channels
	numFrames := len(data) / frameBytes
	out := make([]int16, numFrames)

	for f := 0; f < numFrames; f++ {
		var acc int64
		for ch := 0; ch < channels; ch++ {
			p := f*frameBytes + ch*bytesPerSample
			acc += int64(decodeSample16(data[p:], format, bits))
		}
		out[f] = int16(acc / int64(channels))
	}
	return out, nil
}

// decodeSample16 reads one sample starting at b[0] and scales it to int16.
func decodeSample16(b []byte, format uint16, bits int) int16 {
	switch {
	case format == formatPCM && bits == 16:
		return int16(b[0]) | int16(b[1])<<8
	case format == formatPCM && bits == 8:
		// 8-bit WAV is unsigned, biased at 128.
		return int16(int(b[0])-128) << 8
	case format == formatPCM && bits == 24:
		v := int32(b[0])<<8 | int32(b[1])<<16 | int32(b[2])<<24
		return int16(v >> 16)
	case format == formatPCM && bits == 32:
		v := int32(binary.LittleEndian.Uint32(b))
		return int16(v >> 16)
	case format == formatIEEEFloat && bits == 32:
		f := math.Float32frombits(binary.LittleEndian.Uint32(b))
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		return int16(f * 32767)
	}
	return 0
}

// Encode writes mono PCM16 samples as a WAV byte buffer.
func Encode(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("wav: cannot encode empty sample buffer")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid sample rate %d", sampleRate)
	}

	dataSize := len(samples) * 2
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range samples {
		buf[44+i*2] = byte(s)
		buf[44+i*2+1] = byte(s >> 8)
	}
	return buf, nil
}
