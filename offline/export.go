package offline

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gs "github.com/gridsynth/gridsynth"
)

// WriteWav encodes frames as a 16-bit stereo wav file.
func WriteWav(w io.WriteSeeker, frames [][2]float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           make([]int, 0, 2*len(frames)),
		SourceBitDepth: 16,
	}
	for _, f := range frames {
		buf.Data = append(buf.Data, pcm16(f[0]), pcm16(f[1]))
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("could not write wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("could not finish wav file: %w", err)
	}
	return nil
}

// Raw returns frames as interleaved little-endian samples, either int16 or
// float32.
func Raw(frames [][2]float32, pcm bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	var err error
	if pcm {
		data := make([]int16, 0, 2*len(frames))
		for _, f := range frames {
			data = append(data, int16(pcm16(f[0])), int16(pcm16(f[1])))
		}
		err = binary.Write(buf, binary.LittleEndian, data)
	} else {
		err = binary.Write(buf, binary.LittleEndian, frames)
	}
	if err != nil {
		return nil, fmt.Errorf("could not binary write data to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

func pcm16(v float32) int {
	return gs.Clamp(int(v*math.MaxInt16), math.MinInt16, math.MaxInt16)
}
