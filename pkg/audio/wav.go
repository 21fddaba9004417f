package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Wrap prepends a canonical 44-byte RIFF/WAVE header to mono PCM data.
// Mulaw data is framed with format tag 7 (G.711 μ-law); everything else is
// framed as 16-bit PCM (format tag 1).
func Wrap(data []byte, e Encoding, sampleRate int) []byte {
	var formatTag uint16 = 1
	if e == EncodingMulaw {
		formatTag = 7
	}
	bytesPerSample := e.BytesPerSample()

	buf := new(bytes.Buffer)
	buf.Grow(44 + len(data))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, formatTag)
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*bytesPerSample))
	binary.Write(buf, binary.LittleEndian, uint16(bytesPerSample))
	binary.Write(buf, binary.LittleEndian, uint16(8*bytesPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	return buf.Bytes()
}

// Unwrap parses a RIFF/WAVE container and returns its raw audio payload,
// encoding and sample rate. Only mono μ-law and 16-bit PCM files are
// accepted; chunks other than "fmt " and "data" are skipped.
func Unwrap(wav []byte) (data []byte, e Encoding, sampleRate int, err error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, "", 0, fmt.Errorf("audio: not a RIFF/WAVE container")
	}

	var (
		haveFmt   bool
		formatTag uint16
		channels  uint16
		rate      uint32
		bits      uint16
	)

	pos := 12
	for pos+8 <= len(wav) {
		id := string(wav[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(wav) {
			return nil, "", 0, fmt.Errorf("audio: truncated %q chunk", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, "", 0, fmt.Errorf("audio: fmt chunk too short (%d bytes)", size)
			}
			formatTag = binary.LittleEndian.Uint16(wav[body:])
			channels = binary.LittleEndian.Uint16(wav[body+2:])
			rate = binary.LittleEndian.Uint32(wav[body+4:])
			bits = binary.LittleEndian.Uint16(wav[body+14:])
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, "", 0, fmt.Errorf("audio: data chunk before fmt chunk")
			}
			if channels != 1 {
				return nil, "", 0, fmt.Errorf("audio: %d channels, want mono", channels)
			}
			switch {
			case formatTag == 1 && bits == 16:
				e = EncodingLinear16
			case formatTag == 7 && bits == 8:
				e = EncodingMulaw
			default:
				return nil, "", 0, fmt.Errorf("audio: unsupported format tag %d / %d bits", formatTag, bits)
			}
			return wav[body : body+size], e, int(rate), nil
		}

		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	return nil, "", 0, fmt.Errorf("audio: no data chunk found")
}
