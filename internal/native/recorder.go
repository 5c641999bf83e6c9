package native

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	frameJSON  byte = 1
	frameAudio byte = 2

	maxFrameLen         = 16 << 20
	DefaultDrainTimeout = 2 * time.Second
)

type AudioConfig struct {
	InputSampleRate  int `json:"input_sample_rate"`
	OutputSampleRate int `json:"output_sample_rate"`
	Channels         int `json:"channels"`
}

type recorderMessage struct {
	Type    string   `json:"type"`
	Devices []string `json:"devices"`
	AudioConfig
}

// AudioRecorder drives the native capture helper. Its stdout is a stream of
// frames: one type byte, a little-endian uint32 length, then the payload.
type AudioRecorder struct {
	sup          *Supervisor
	device       string
	drainTimeout time.Duration
	log          *slog.Logger

	mu      sync.Mutex
	onAudio func(pcm []byte, at time.Time)
	config  AudioConfig
	waiters map[string][]chan recorderMessage
}

func NewAudioRecorder(cfg ProcessConfig, device string, logger *slog.Logger) *AudioRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "audio-recorder"
	}
	r := &AudioRecorder{
		device:       device,
		drainTimeout: DefaultDrainTimeout,
		log:          logger.With("component", "audio_recorder"),
		waiters:      make(map[string][]chan recorderMessage),
	}
	r.sup = NewSupervisor(cfg, r.consume, nil, logger)
	return r
}

// OnAudio sets the receiver for PCM16 frames.
func (r *AudioRecorder) OnAudio(fn func(pcm []byte, at time.Time)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAudio = fn
}

func (r *AudioRecorder) Start(ctx context.Context) error {
	return r.sup.Start(ctx)
}

func (r *AudioRecorder) Stop() error {
	return r.sup.Stop()
}

func (r *AudioRecorder) IsAlive() bool {
	return r.sup.IsAlive()
}

func (r *AudioRecorder) SetDevice(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.device = name
}

func (r *AudioRecorder) Device() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device
}

func (r *AudioRecorder) StartCapture(context.Context) error {
	r.mu.Lock()
	device := r.device
	r.mu.Unlock()

	cmd := map[string]any{"command": "start"}
	if device != "" {
		cmd["device_name"] = device
	}
	return r.sup.Send(cmd)
}

// StopCapture asks the helper to stop and waits until it has flushed every
// buffered frame, so the last words of a recording are not lost.
func (r *AudioRecorder) StopCapture(ctx context.Context) error {
	ch := r.expect("drain-complete")
	if err := r.sup.Send(map[string]string{"command": "stop"}); err != nil {
		r.forget("drain-complete", ch)
		return err
	}

	timer := time.NewTimer(r.drainTimeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		r.forget("drain-complete", ch)
		r.log.Warn("drain timed out", "timeout", r.drainTimeout)
		return nil
	case <-ctx.Done():
		r.forget("drain-complete", ch)
		return ctx.Err()
	}
}

func (r *AudioRecorder) ListDevices(ctx context.Context) ([]string, error) {
	msg, err := r.request(ctx, map[string]string{"command": "list-devices"}, "device-list")
	if err != nil {
		return nil, err
	}
	return msg.Devices, nil
}

func (r *AudioRecorder) DeviceConfig(ctx context.Context) (AudioConfig, error) {
	r.mu.Lock()
	device := r.device
	r.mu.Unlock()

	cmd := map[string]any{"command": "get-device-config"}
	if device != "" {
		cmd["device_name"] = device
	}
	msg, err := r.request(ctx, cmd, "audio-config")
	if err != nil {
		return AudioConfig{}, err
	}
	return msg.AudioConfig, nil
}

// Config returns the last audio configuration the helper reported.
func (r *AudioRecorder) Config() AudioConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config
}

func (r *AudioRecorder) request(ctx context.Context, cmd any, reply string) (recorderMessage, error) {
	ch := r.expect(reply)
	if err := r.sup.Send(cmd); err != nil {
		r.forget(reply, ch)
		return recorderMessage{}, err
	}
	select {
	case msg := <-ch:
		return msg, nil
	case <-ctx.Done():
		r.forget(reply, ch)
		return recorderMessage{}, fmt.Errorf("await %s: %w", reply, ctx.Err())
	}
}

func (r *AudioRecorder) expect(msgType string) chan recorderMessage {
	ch := make(chan recorderMessage, 1)
	r.mu.Lock()
	r.waiters[msgType] = append(r.waiters[msgType], ch)
	r.mu.Unlock()
	return ch
}

func (r *AudioRecorder) forget(msgType string, ch chan recorderMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.waiters[msgType]
	for i, w := range list {
		if w == ch {
			r.waiters[msgType] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (r *AudioRecorder) consume(rd io.Reader) {
	br := bufio.NewReader(rd)
	var header [5]byte
	for {
		if _, err := io.ReadFull(br, header[:]); err != nil {
			if !errors.Is(err, io.EOF) {
				r.log.Warn("read frame header", "error", err)
			}
			return
		}
		n := binary.LittleEndian.Uint32(header[1:])
		if n > maxFrameLen {
			r.log.Error("frame too large, dropping stream", "len", n)
			return
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(br, payload); err != nil {
			r.log.Warn("read frame payload", "error", err)
			return
		}
		r.handleFrame(header[0], payload)
	}
}

func (r *AudioRecorder) handleFrame(kind byte, payload []byte) {
	switch kind {
	case frameAudio:
		r.mu.Lock()
		fn := r.onAudio
		r.mu.Unlock()
		if fn != nil {
			fn(payload, time.Now())
		}
	case frameJSON:
		var msg recorderMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			r.log.Warn("bad recorder message", "error", err)
			return
		}
		r.mu.Lock()
		if msg.Type == "audio-config" {
			r.config = msg.AudioConfig
		}
		waiters := r.waiters[msg.Type]
		delete(r.waiters, msg.Type)
		r.mu.Unlock()
		for _, w := range waiters {
			w <- msg
		}
	default:
		r.log.Debug("unknown frame type", "type", kind)
	}
}
