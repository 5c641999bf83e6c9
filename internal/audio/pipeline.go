package audio

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultSampleRate = 16000
	VolumeInterval    = 48 * time.Millisecond
	VolumeHistorySize = 42
)

type Volume struct {
	Level float64
	Peak  float64
	At    time.Time
}

// Pipeline buffers the PCM16 frames of one recording.
type Pipeline struct {
	mu         sync.Mutex
	sampleRate int
	buf        []byte
	limiter    *rate.Limiter
	history    []float64
	frames     int
}

func NewPipeline(sampleRate int) *Pipeline {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Pipeline{
		sampleRate: sampleRate,
		limiter:    newVolumeLimiter(),
		history:    make([]float64, 0, VolumeHistorySize),
	}
}

func newVolumeLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(VolumeInterval), 1)
}

// PushFrame appends pcm and returns a volume sample when the 48 ms throttle
// admits one.
func (p *Pipeline) PushFrame(pcm []byte, at time.Time) (Volume, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, pcm...)
	p.frames++

	if !p.limiter.AllowN(at, 1) {
		return Volume{}, false
	}
	v := measure(pcm)
	v.At = at
	if len(p.history) == VolumeHistorySize {
		copy(p.history, p.history[1:])
		p.history = p.history[:VolumeHistorySize-1]
	}
	p.history = append(p.history, v.Level)
	return v, true
}

// History returns the recent volume levels, oldest first.
func (p *Pipeline) History() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]float64, len(p.history))
	copy(out, p.history)
	return out
}

// Finalize hands over the buffered audio and clears the pipeline. A second
// call returns an empty buffer.
func (p *Pipeline) Finalize() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.buf
	if out == nil {
		out = []byte{}
	}
	p.resetLocked()
	return out
}

func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *Pipeline) resetLocked() {
	p.buf = nil
	p.frames = 0
	p.history = p.history[:0]
	p.limiter = newVolumeLimiter()
}

func (p *Pipeline) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

func (p *Pipeline) SampleRate() int {
	return p.sampleRate
}

// Duration of PCM16 mono audio at the given rate.
func Duration(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(pcm)/2) * time.Second / time.Duration(sampleRate)
}

func measure(pcm []byte) Volume {
	samples := PCMBytesToInt16(pcm)
	if len(samples) == 0 {
		return Volume{}
	}
	var sumSquares float64
	var peak float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		sumSquares += f * f
		if a := math.Abs(f); a > peak {
			peak = a
		}
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))
	return Volume{Level: math.Min(rms, 1), Peak: math.Min(peak, 1)}
}
