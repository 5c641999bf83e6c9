package audio

import (
	"encoding/binary"
	"math"
)

// ResampleInt16 interpolates linearly between neighbouring samples. The
// output holds ceil(len(samples)*toRate/fromRate) samples.
func ResampleInt16(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return samples
	}

	n := len(samples)
	outputLen := (n*toRate + fromRate - 1) / fromRate
	output := make([]int16, outputLen)
	for i := range output {
		srcPos := float64(i) * float64(fromRate) / float64(toRate)
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		switch {
		case srcIdx+1 < n:
			v := float64(samples[srcIdx])*(1-frac) + float64(samples[srcIdx+1])*frac
			output[i] = clampInt16(math.Round(v))
		case srcIdx < n:
			output[i] = samples[srcIdx]
		default:
			output[i] = samples[n-1]
		}
	}
	return output
}

// ResampleUpmix converts mono PCM16 to targetRate and duplicates every sample
// across targetChannels, producing interleaved PCM16.
func ResampleUpmix(mono []byte, fromRate, targetRate, targetChannels int) []byte {
	if targetChannels < 1 {
		targetChannels = 1
	}
	resampled := ResampleInt16(PCMBytesToInt16(mono), fromRate, targetRate)

	out := make([]byte, len(resampled)*2*targetChannels)
	off := 0
	for _, s := range resampled {
		for ch := 0; ch < targetChannels; ch++ {
			binary.LittleEndian.PutUint16(out[off:], uint16(s))
			off += 2
		}
	}
	return out
}

func PCMBytesToInt16(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

func Int16ToPCMBytes(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

func clampInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
