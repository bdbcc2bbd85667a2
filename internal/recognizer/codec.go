package recognizer

import (
	"encoding/binary"
)

// Codec compresses one frame of PCM samples into the blob shape the
// upstream recognizer's Conn.SendFrame expects. The lossless-audio codec
// library itself is out of scope per spec §1 ("treated as external
// collaborators consumed through narrow interfaces") — no such library
// appears anywhere in the retrieved pack, so this narrow interface is the
// full extent of this package's involvement with compression, and
// linearPCMCodec below is a minimal stdlib placeholder standing in for a
// real lossless encoder.
type Codec interface {
	Encode(samples []int16) ([]byte, error)
}

// linearPCMCodec writes frames as little-endian int16 PCM, unchanged. It
// is "lossless" in the degenerate sense of not discarding information;
// production deployments are expected to supply a real Codec backed by
// an external compressor.
type linearPCMCodec struct{}

// NewLinearPCMCodec returns the default passthrough Codec.
func NewLinearPCMCodec() Codec {
	return linearPCMCodec{}
}

func (linearPCMCodec) Encode(samples []int16) ([]byte, error) {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out, nil
}
