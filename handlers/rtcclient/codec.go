package rtcclient

import (
	"encoding/binary"
	"fmt"

	"github.com/NimbusAI/avatarchat/databundle"
)

// Data channel wire formats.
//
// Audio messages are raw 16-bit little-endian PCM, mono. Video messages
// carry a four-byte header (big-endian uint16 width, uint16 height)
// followed by packed RGB24 pixels. Text messages are plain UTF-8.
const videoHeaderLen = 4

// decodePCM converts a PCM message into a one-dimensional float tensor in
// [-1, 1].
func decodePCM(raw []byte) (*databundle.Tensor, error) {
	if len(raw) == 0 || len(raw)%2 != 0 {
		return nil, fmt.Errorf("pcm payload must be a non-empty multiple of 2 bytes, got %d", len(raw))
	}
	n := len(raw) / 2
	floats := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		floats[i] = float32(s) / 32768
	}
	return databundle.NewFloatTensor([]int{n}, floats)
}

// encodePCM converts a float tensor back into 16-bit little-endian PCM.
// Samples outside [-1, 1] are clamped.
func encodePCM(t *databundle.Tensor) []byte {
	floats := t.Floats()
	out := make([]byte, 2*len(floats))
	for i, f := range floats {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		s := int16(f * 32767)
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// decodeVideoFrame converts a framed video message into a byte tensor of
// shape [height, width, 3].
func decodeVideoFrame(raw []byte) (*databundle.Tensor, error) {
	if len(raw) < videoHeaderLen {
		return nil, fmt.Errorf("video payload too short: %d bytes", len(raw))
	}
	width := int(binary.BigEndian.Uint16(raw[0:2]))
	height := int(binary.BigEndian.Uint16(raw[2:4]))
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("video frame with zero dimension: %dx%d", width, height)
	}
	pixels := raw[videoHeaderLen:]
	if len(pixels) != width*height*3 {
		return nil, fmt.Errorf("video payload size %d does not match %dx%d rgb frame", len(pixels), width, height)
	}
	return databundle.NewByteTensor([]int{height, width, 3}, pixels)
}

// encodeVideoFrame converts a byte tensor of shape [height, width, 3] or
// [1, height, width, 3] into the wire format.
func encodeVideoFrame(t *databundle.Tensor) ([]byte, error) {
	shape := t.Shape()
	if len(shape) == 4 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 3 || shape[2] != 3 {
		return nil, fmt.Errorf("video tensor must be [height, width, 3], got %v", t.Shape())
	}
	height, width := shape[0], shape[1]
	if width > 0xffff || height > 0xffff {
		return nil, fmt.Errorf("video frame %dx%d exceeds wire format bounds", width, height)
	}

	out := make([]byte, videoHeaderLen+len(t.Bytes()))
	binary.BigEndian.PutUint16(out[0:2], uint16(width))
	binary.BigEndian.PutUint16(out[2:4], uint16(height))
	copy(out[videoHeaderLen:], t.Bytes())
	return out, nil
}
