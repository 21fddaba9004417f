package audio

// G.711 μ-law transcoding. The telephony side of the pipeline carries one
// byte per sample; synthesizers and transcribers that only speak Linear16 go
// through these tables at the edges.

const (
	mulawBias = 0x84
	mulawClip = 32635
)

var mulawSegments = [8]int32{0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF, 0x1FFF, 0x3FFF, 0x7FFF}

// EncodeMulawSample compresses one 16-bit PCM sample to a μ-law byte.
func EncodeMulawSample(sample int16) byte {
	// Widen before negating: -(-32768) does not fit in int16.
	v := int32(sample)
	sign := byte(0)
	if v < 0 {
		sign = 0x80
		v = -v
	}
	if v > mulawClip {
		v = mulawClip
	}
	v += mulawBias

	segment := 0
	for segment < 8 && v > mulawSegments[segment] {
		segment++
	}

	mantissa := byte((v >> (uint(segment) + 3)) & 0x0F)
	return ^(sign | byte(segment)<<4 | mantissa)
}

// DecodeMulawSample expands one μ-law byte to a 16-bit PCM sample.
func DecodeMulawSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	segment := (b >> 4) & 0x07
	mantissa := b & 0x0F

	sample := (int16(mantissa)<<3 + mulawBias) << uint(segment)
	sample -= mulawBias
	if sign != 0 {
		return -sample
	}
	return sample
}

// EncodeMulaw compresses little-endian 16-bit PCM to μ-law, halving the byte
// count. A trailing odd byte is ignored.
func EncodeMulaw(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		out[i/2] = EncodeMulawSample(sample)
	}
	return out
}

// DecodeMulaw expands μ-law to little-endian 16-bit PCM, doubling the byte
// count.
func DecodeMulaw(enc []byte) []byte {
	out := make([]byte, len(enc)*2)
	for i, b := range enc {
		sample := DecodeMulawSample(b)
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	return out
}
