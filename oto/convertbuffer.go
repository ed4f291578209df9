package oto

import (
	"encoding/binary"
	"math"
)

// frameBytes is the size of one stereo float32 frame.
const frameBytes = 8

// PutFrames writes frames into dst as interleaved float32 little-endian
// samples and returns the number of bytes written. Only whole frames that
// fit into dst are written.
func PutFrames(dst []byte, frames [][2]float32) int {
	n := min(len(frames), len(dst)/frameBytes)
	for i, f := range frames[:n] {
		binary.LittleEndian.PutUint32(dst[i*frameBytes:], math.Float32bits(f[0]))
		binary.LittleEndian.PutUint32(dst[i*frameBytes+4:], math.Float32bits(f[1]))
	}
	return n * frameBytes
}
