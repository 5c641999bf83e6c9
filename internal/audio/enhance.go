package audio

import (
	"encoding/binary"
	"math"
)

const (
	highPassCutoffHz = 80.0
	// -3 dBFS
	targetPeak = 0.707 * math.MaxInt16
	maxGain    = 4.0
)

// Enhance removes DC offset, applies a one-pole high-pass filter and
// normalizes the peak toward -3 dBFS. The output has the same length as pcm;
// inputs shorter than one sample are returned unchanged.
func Enhance(pcm []byte, sampleRate int) []byte {
	if len(pcm) < 2 || sampleRate <= 0 {
		return pcm
	}

	samples := PCMBytesToInt16(pcm)

	var sum int64
	for _, s := range samples {
		sum += int64(s)
	}
	mean := sum / int64(len(samples))

	a := math.Exp(-2 * math.Pi * highPassCutoffHz / float64(sampleRate))
	filtered := make([]float64, len(samples))
	var prevX, prevY, peak float64
	for i, s := range samples {
		x := float64(int64(s) - mean)
		y := a * (prevY + x - prevX)
		filtered[i] = y
		prevX, prevY = x, y
		if abs := math.Abs(y); abs > peak {
			peak = abs
		}
	}

	gain := 1.0
	if peak > 0 {
		gain = math.Min(targetPeak/peak, maxGain)
	}

	out := make([]byte, len(pcm))
	copy(out, pcm)
	for i, y := range filtered {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(clampInt16(math.Round(y*gain))))
	}
	return out
}
