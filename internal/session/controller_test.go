package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heyito/ito-sub003/internal/interaction"
	"github.com/heyito/ito-sub003/internal/shared"
	"github.com/heyito/ito-sub003/internal/transcription"
)

type mockRecorder struct {
	mu     sync.Mutex
	starts int
	stops  int
	err    error
}

func (m *mockRecorder) StartCapture(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	return m.err
}

func (m *mockRecorder) StopCapture(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return nil
}

func (m *mockRecorder) IsAlive() bool { return true }

func (m *mockRecorder) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts, m.stops
}

type mockStream struct {
	mu       sync.Mutex
	ctx      context.Context
	req      transcription.OpenRequest
	configs  []transcription.StreamConfig
	finished [][]byte
	result   transcription.Result
	err      error
	block    bool
	onFinish func()
	started  chan struct{}
	cancel   chan struct{}
	once     sync.Once
}

func (s *mockStream) UpdateConfig(cfg transcription.StreamConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs = append(s.configs, cfg)
	return nil
}

func (s *mockStream) Finish(pcm []byte) (transcription.Result, error) {
	s.mu.Lock()
	s.finished = append(s.finished, pcm)
	block, onFinish := s.block, s.onFinish
	s.mu.Unlock()

	if onFinish != nil {
		onFinish()
	}

	if block {
		close(s.started)
		select {
		case <-s.ctx.Done():
		case <-s.cancel:
		}
		return transcription.Result{}, shared.ErrCancelled
	}
	return s.result, s.err
}

func (s *mockStream) Cancel() {
	s.once.Do(func() { close(s.cancel) })
}

func (s *mockStream) snapshot() ([]transcription.StreamConfig, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transcription.StreamConfig, len(s.configs))
	copy(out, s.configs)
	return out, len(s.finished)
}

type mockTranscriber struct {
	mu       sync.Mutex
	streams  []*mockStream
	result   transcription.Result
	err      error
	openErr  error
	block    bool
	onFinish func()
}

func (m *mockTranscriber) Open(ctx context.Context, req transcription.OpenRequest) (TranscriptionStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	s := &mockStream{
		ctx:      ctx,
		req:      req,
		result:   m.result,
		err:      m.err,
		block:    m.block,
		onFinish: m.onFinish,
		started:  make(chan struct{}),
		cancel:   make(chan struct{}),
	}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *mockTranscriber) all() []*mockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*mockStream(nil), m.streams...)
}

type mockInserter struct {
	mu       sync.Mutex
	texts    []string
	fail     bool
	onInsert func()
}

func (m *mockInserter) InsertText(text string) bool {
	if m.onInsert != nil {
		m.onInsert()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return !m.fail
}

func (m *mockInserter) inserted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

type mockStore struct {
	mu   sync.Mutex
	recs []*interaction.Interaction
}

func (m *mockStore) Create(_ context.Context, rec *interaction.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *mockStore) records() []*interaction.Interaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*interaction.Interaction(nil), m.recs...)
}

type mockObserver struct {
	mu               sync.Mutex
	outcomes         []string
	insertionFailure int
}

func (m *mockObserver) ObserveSession(_, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockObserver) ObserveVolumeDropped() {}

func (m *mockObserver) ObserveInsertionFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertionFailure++
}

func (m *mockObserver) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.outcomes) == 0 {
		return ""
	}
	return m.outcomes[len(m.outcomes)-1]
}

type gatedContext struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
	done  chan struct{}
}

// Fetch blocks the first call until gate is closed and returns stale text
// for it. Later calls answer immediately.
func (g *gatedContext) Fetch(context.Context) string {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	if n == 1 {
		<-g.gate
		defer close(g.done)
		return "stale text"
	}
	return "fresh text"
}

type staticContext string

func (s staticContext) Fetch(context.Context) string { return string(s) }

type countingSelection struct {
	text  string
	calls atomic.Int32
}

func (s *countingSelection) Selection(context.Context) string {
	s.calls.Add(1)
	return s.text
}

type harness struct {
	ctrl     *Controller
	recorder *mockRecorder
	tx       *mockTranscriber
	inserter *mockInserter
	store    *mockStore
	observer *mockObserver
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		recorder: &mockRecorder{},
		tx:       &mockTranscriber{result: transcription.Result{Transcript: "hello world"}},
		inserter: &mockInserter{},
		store:    &mockStore{},
		observer: &mockObserver{},
	}
	cfg := Config{
		Recorder:    h.recorder,
		Transcriber: h.tx,
		Inserter:    h.inserter,
		Store:       h.store,
		Observer:    h.observer,
		Metadata:    transcription.Metadata{ASRProvider: "groq"},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.ctrl = NewController(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(h.ctrl.Close)
	return h
}

// speak feeds d worth of 16 kHz PCM16 audio in 20 ms frames.
func (h *harness) speak(d time.Duration) {
	frames := int(d / (20 * time.Millisecond))
	at := time.Now()
	for i := 0; i < frames; i++ {
		frame := make([]byte, 640)
		for j := 0; j < len(frame); j += 2 {
			frame[j+1] = byte(i % 16)
		}
		h.ctrl.HandleAudio(frame, at.Add(time.Duration(i)*20*time.Millisecond))
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func collect(sub *Subscription) []Event {
	var out []Event
	for {
		select {
		case ev := <-sub.Events():
			if ev.Type != EventVolume {
				out = append(out, ev)
			}
		default:
			return out
		}
	}
}

func types(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestController_ShortRecordingIsDiscarded(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.ctrl.Start(shared.ModeTranscribe); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.speak(60 * time.Millisecond)
	if err := h.ctrl.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if len(h.inserter.inserted()) != 0 {
		t.Error("short recording must not insert text")
	}
	if len(h.store.records()) != 0 {
		t.Error("short recording must not be persisted")
	}
	for _, s := range h.tx.all() {
		if _, n := s.snapshot(); n != 0 {
			t.Error("short recording must not be transcribed")
		}
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}
	if h.observer.last() != "too_short" {
		t.Errorf("expected too_short outcome, got %q", h.observer.last())
	}
}

func TestController_CompleteInsertsOnce(t *testing.T) {
	h := newHarness(t, nil)
	sub := h.ctrl.Subscribe()
	defer sub.Close()

	if err := h.ctrl.Start(shared.ModeTranscribe); err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.ctrl.State() != StateRecording {
		t.Fatalf("expected recording, got %s", h.ctrl.State())
	}
	h.speak(500 * time.Millisecond)
	if err := h.ctrl.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if got := h.inserter.inserted(); len(got) != 1 || got[0] != "hello world" {
		t.Errorf("expected one insert of transcript, got %v", got)
	}
	recs := h.store.records()
	if len(recs) != 1 {
		t.Fatalf("expected one stored interaction, got %d", len(recs))
	}
	if recs[0].Transcript != "hello world" || recs[0].Mode != "transcribe" || recs[0].DurationMs != 500 {
		t.Errorf("unexpected interaction %+v", recs[0])
	}
	if string(recs[0].Audio[:4]) != "RIFF" {
		t.Error("expected stored audio to be wav")
	}

	streams := h.tx.all()
	if len(streams) != 1 {
		t.Fatalf("expected one stream, got %d", len(streams))
	}
	if streams[0].req.SessionID == "" || streams[0].req.SessionID != recs[0].SessionID {
		t.Error("expected stream and interaction to share the session id")
	}

	events := collect(sub)
	want := []EventType{EventRecordingStarted, EventRecordingStopped, EventTranscriptionResult}
	got := types(events)
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if events[2].Transcript != "hello world" {
		t.Errorf("expected transcript in result event, got %q", events[2].Transcript)
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}

	if err := h.ctrl.Complete(context.Background()); err != nil {
		t.Errorf("second complete should be a no-op, got %v", err)
	}
	if len(h.inserter.inserted()) != 1 {
		t.Error("second complete must not insert again")
	}
}

func TestController_StartWhileRecordingIsNoop(t *testing.T) {
	h := newHarness(t, nil)

	_ = h.ctrl.Start(shared.ModeTranscribe)
	id := h.ctrl.SessionID()
	h.speak(100 * time.Millisecond)

	if err := h.ctrl.Start(shared.ModeEdit); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if h.ctrl.SessionID() != id {
		t.Error("second start must not replace the session")
	}
	if starts, _ := h.recorder.counts(); starts != 1 {
		t.Errorf("expected one capture start, got %d", starts)
	}

	h.speak(100 * time.Millisecond)
	if err := h.ctrl.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	recs := h.store.records()
	if len(recs) != 1 || recs[0].DurationMs != 200 || recs[0].Mode != "transcribe" {
		t.Errorf("expected buffered audio to survive the second start, got %+v", recs)
	}
}

func TestController_FailureIsPersisted(t *testing.T) {
	h := newHarness(t, nil)
	h.tx.result = transcription.Result{Failure: shared.NewFailure(shared.KindTranscription, "upstream 500")}
	sub := h.ctrl.Subscribe()
	defer sub.Close()

	_ = h.ctrl.Start(shared.ModeTranscribe)
	h.speak(300 * time.Millisecond)
	err := h.ctrl.Complete(context.Background())
	if !errors.Is(err, shared.ErrTranscription) {
		t.Fatalf("expected ErrTranscription, got %v", err)
	}

	if len(h.inserter.inserted()) != 0 {
		t.Error("failure must not insert text")
	}
	recs := h.store.records()
	if len(recs) != 1 || recs[0].ErrorMessage != "upstream 500" {
		t.Fatalf("expected failed interaction, got %+v", recs)
	}

	events := collect(sub)
	last := events[len(events)-1]
	if last.Type != EventTranscriptionError || last.Kind != shared.KindTranscription {
		t.Errorf("expected transcription error event, got %+v", last)
	}
}

func TestController_EmptyTranscriptIsNotInserted(t *testing.T) {
	h := newHarness(t, nil)
	h.tx.result = transcription.Result{}

	_ = h.ctrl.Start(shared.ModeTranscribe)
	h.speak(300 * time.Millisecond)
	if err := h.ctrl.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(h.inserter.inserted()) != 0 {
		t.Error("empty transcript must not be inserted")
	}
	if len(h.store.records()) != 1 {
		t.Error("empty transcript is still recorded")
	}
	if h.observer.last() != "empty" {
		t.Errorf("expected empty outcome, got %q", h.observer.last())
	}
}

func TestController_InsertionFailureIsObserved(t *testing.T) {
	h := newHarness(t, nil)
	h.inserter.fail = true

	_ = h.ctrl.Start(shared.ModeTranscribe)
	h.speak(300 * time.Millisecond)
	if err := h.ctrl.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	h.observer.mu.Lock()
	defer h.observer.mu.Unlock()
	if h.observer.insertionFailure != 1 {
		t.Errorf("expected one insertion failure, got %d", h.observer.insertionFailure)
	}
}

func TestController_CancelWhileRecording(t *testing.T) {
	h := newHarness(t, nil)
	sub := h.ctrl.Subscribe()
	defer sub.Close()

	_ = h.ctrl.Start(shared.ModeTranscribe)
	h.speak(300 * time.Millisecond)
	h.ctrl.Cancel()

	if h.ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}
	if _, stops := h.recorder.counts(); stops != 1 {
		t.Errorf("expected capture stopped once, got %d", stops)
	}
	if err := h.ctrl.Complete(context.Background()); err != nil {
		t.Errorf("complete after cancel should be a no-op, got %v", err)
	}
	if len(h.store.records()) != 0 || len(h.inserter.inserted()) != 0 {
		t.Error("cancelled session must not produce output")
	}
	got := types(collect(sub))
	if len(got) != 2 || got[1] != EventRecordingStopped {
		t.Errorf("expected started then stopped, got %v", got)
	}
	if h.observer.last() != "cancelled" {
		t.Errorf("expected cancelled outcome, got %q", h.observer.last())
	}
}

func TestController_CancelDuringFinalizeDiscardsResult(t *testing.T) {
	h := newHarness(t, nil)
	h.tx.block = true
	sub := h.ctrl.Subscribe()
	defer sub.Close()

	_ = h.ctrl.Start(shared.ModeTranscribe)
	h.speak(300 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Complete(context.Background()) }()

	eventually(t, func() bool { return len(h.tx.all()) == 1 }, "stream never opened")
	<-h.tx.all()[0].started
	if h.ctrl.State() != StateFinalizing {
		t.Fatalf("expected finalizing, got %s", h.ctrl.State())
	}
	h.ctrl.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, shared.ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("complete did not return after cancel")
	}

	if len(h.store.records()) != 0 || len(h.inserter.inserted()) != 0 {
		t.Error("cancelled session must not produce output")
	}
	for _, ev := range collect(sub) {
		if ev.Type == EventTranscriptionError || ev.Type == EventTranscriptionResult {
			t.Errorf("unexpected %s after cancel", ev.Type)
		}
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}
}

func TestController_TimeoutIsReported(t *testing.T) {
	h := newHarness(t, nil)
	h.tx.block = true
	sub := h.ctrl.Subscribe()
	defer sub.Close()

	_ = h.ctrl.Start(shared.ModeTranscribe)
	h.speak(300 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := h.ctrl.Complete(ctx)
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	events := collect(sub)
	if last := events[len(events)-1]; last.Type != EventTranscriptionError {
		t.Errorf("expected transcription error, got %s", last.Type)
	}
	if h.observer.last() != "error" {
		t.Errorf("expected error outcome, got %q", h.observer.last())
	}
}

func TestController_SetModeUpdatesStream(t *testing.T) {
	h := newHarness(t, nil)

	_ = h.ctrl.Start(shared.ModeTranscribe)
	h.speak(200 * time.Millisecond)
	h.ctrl.SetMode(shared.ModeEdit)

	eventually(t, func() bool {
		streams := h.tx.all()
		if len(streams) != 1 {
			return false
		}
		cfgs, _ := streams[0].snapshot()
		return len(cfgs) > 0 && cfgs[len(cfgs)-1].Mode == shared.ModeEdit
	}, "mode change never reached the stream")

	if err := h.ctrl.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if starts, _ := h.recorder.counts(); starts != 1 {
		t.Error("mode change must not restart capture")
	}
	if recs := h.store.records(); len(recs) != 1 || recs[0].Mode != "edit" {
		t.Errorf("expected edit interaction, got %+v", recs)
	}
}

func TestController_ContextIsPushed(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Context = staticContext("Dear team") })

	_ = h.ctrl.Start(shared.ModeEdit)
	h.speak(200 * time.Millisecond)
	eventually(t, func() bool {
		streams := h.tx.all()
		if len(streams) != 1 {
			return false
		}
		cfgs, _ := streams[0].snapshot()
		return len(cfgs) > 0 && cfgs[0].ContextText == "Dear team"
	}, "context never reached the stream")
	_ = h.ctrl.Complete(context.Background())
}

func TestController_StaleContextIsDiscarded(t *testing.T) {
	gated := &gatedContext{gate: make(chan struct{}), done: make(chan struct{})}
	h := newHarness(t, func(c *Config) { c.Context = gated })

	_ = h.ctrl.Start(shared.ModeTranscribe)
	eventually(t, func() bool {
		gated.mu.Lock()
		defer gated.mu.Unlock()
		return gated.calls == 1
	}, "first context fetch never started")
	h.ctrl.Cancel()

	_ = h.ctrl.Start(shared.ModeTranscribe)
	h.speak(200 * time.Millisecond)
	eventually(t, func() bool { return len(h.tx.all()) == 2 }, "second stream never opened")

	close(gated.gate)
	<-gated.done
	time.Sleep(20 * time.Millisecond)

	if err := h.ctrl.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	for i, s := range h.tx.all() {
		cfgs, _ := s.snapshot()
		for _, c := range cfgs {
			if c.ContextText == "stale text" {
				t.Errorf("stream %d received context from a cancelled session", i)
			}
		}
	}
}

func TestController_NoAudioWatchdog(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.NoAudioTimeout = 30 * time.Millisecond })
	sub := h.ctrl.Subscribe()
	defer sub.Close()

	_ = h.ctrl.Start(shared.ModeTranscribe)
	eventually(t, func() bool { return h.ctrl.State() == StateIdle }, "watchdog never fired")

	eventually(t, func() bool { return h.observer.last() == "no_audio" }, "expected no_audio outcome")
	var sawError bool
	for _, ev := range collect(sub) {
		if ev.Type == EventTranscriptionError && ev.Error == ErrNoAudio.Error() {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected no-audio error event")
	}
	if _, stops := h.recorder.counts(); stops != 1 {
		t.Errorf("expected capture stopped, got %d stops", stops)
	}
}

func TestController_WatchdogIgnoresActiveSession(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.NoAudioTimeout = 30 * time.Millisecond })

	_ = h.ctrl.Start(shared.ModeTranscribe)
	h.speak(40 * time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	if h.ctrl.State() != StateRecording {
		t.Errorf("expected recording to continue, got %s", h.ctrl.State())
	}
}

func TestController_StartCaptureFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.recorder.err = errors.New("device busy")

	if err := h.ctrl.Start(shared.ModeTranscribe); err == nil {
		t.Fatal("expected start error")
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}
	h.recorder.err = nil
	if err := h.ctrl.Start(shared.ModeTranscribe); err != nil {
		t.Errorf("expected retry to succeed, got %v", err)
	}
}

func TestController_VolumeEvents(t *testing.T) {
	h := newHarness(t, nil)
	sub := h.ctrl.Subscribe()
	defer sub.Close()

	_ = h.ctrl.Start(shared.ModeTranscribe)
	h.speak(200 * time.Millisecond)

	var volumes int
	for {
		select {
		case ev := <-sub.Events():
			if ev.Type == EventVolume {
				volumes++
				if len(ev.History) == 0 {
					t.Error("expected volume history")
				}
			}
			continue
		default:
		}
		break
	}
	if volumes == 0 || volumes > 5 {
		t.Errorf("expected throttled volume events, got %d", volumes)
	}
}

func TestController_TransportErrors(t *testing.T) {
	tests := []struct {
		name    string
		openErr error
		err     error
		want    error
		kind    shared.Kind
	}{
		{"finish internal", nil, fmt.Errorf("receive result: stream reset: %w", shared.ErrInternal), shared.ErrInternal, shared.KindInternal},
		{"server unreachable", nil, fmt.Errorf("receive result: connection refused: %w", shared.ErrServerUnavailable), shared.ErrServerUnavailable, shared.KindInternal},
		{"open validation", fmt.Errorf("asrPrompt: %w", shared.ErrValidation), nil, shared.ErrValidation, shared.KindValidation},
		{"open provider unavailable", fmt.Errorf("groq: %w", shared.ErrProviderUnavailable), nil, shared.ErrProviderUnavailable, shared.KindProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.tx.openErr = tt.openErr
			h.tx.err = tt.err
			sub := h.ctrl.Subscribe()
			defer sub.Close()

			_ = h.ctrl.Start(shared.ModeTranscribe)
			h.speak(300 * time.Millisecond)
			err := h.ctrl.Complete(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}

			events := collect(sub)
			if len(events) == 0 {
				t.Fatal("expected events")
			}
			last := events[len(events)-1]
			if last.Type != EventTranscriptionError || last.Kind != tt.kind {
				t.Errorf("expected %s error event, got %+v", tt.kind, last)
			}
			if len(h.store.records()) != 0 {
				t.Error("transport error must not be persisted")
			}
			if len(h.inserter.inserted()) != 0 {
				t.Error("transport error must not insert text")
			}
			if h.ctrl.State() != StateIdle {
				t.Errorf("expected idle, got %s", h.ctrl.State())
			}
			if h.observer.last() != "error" {
				t.Errorf("expected error outcome, got %q", h.observer.last())
			}
		})
	}
}

func TestController_CancelAfterResultArrivesDiscardsIt(t *testing.T) {
	h := newHarness(t, nil)
	h.tx.onFinish = h.ctrl.Cancel
	sub := h.ctrl.Subscribe()
	defer sub.Close()

	_ = h.ctrl.Start(shared.ModeTranscribe)
	h.speak(300 * time.Millisecond)
	err := h.ctrl.Complete(context.Background())
	if !errors.Is(err, shared.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if len(h.inserter.inserted()) != 0 {
		t.Error("result of a cancelled session must not be inserted")
	}
	if len(h.store.records()) != 0 {
		t.Error("result of a cancelled session must not be persisted")
	}
	for _, ev := range collect(sub) {
		if ev.Type == EventTranscriptionResult {
			t.Error("unexpected result event after cancel")
		}
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}
}

func TestController_CancelDuringDeliveryIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.inserter.onInsert = h.ctrl.Cancel

	_ = h.ctrl.Start(shared.ModeTranscribe)
	h.speak(300 * time.Millisecond)
	if err := h.ctrl.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := h.inserter.inserted(); len(got) != 1 {
		t.Errorf("expected one insert, got %v", got)
	}
	if recs := h.store.records(); len(recs) != 1 || recs[0].Transcript != "hello world" {
		t.Errorf("expected delivered interaction, got %+v", recs)
	}
	if h.observer.last() != "completed" {
		t.Errorf("expected completed outcome, got %q", h.observer.last())
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}
}

func TestController_SetModeRightAfterStart(t *testing.T) {
	sel := &countingSelection{text: "draft"}
	h := newHarness(t, func(c *Config) { c.Selection = sel })

	const rounds = 10
	for i := 0; i < rounds; i++ {
		if err := h.ctrl.Start(shared.ModeTranscribe); err != nil {
			t.Fatalf("start: %v", err)
		}
		h.ctrl.SetMode(shared.ModeEdit)
		h.speak(200 * time.Millisecond)
		if err := h.ctrl.Complete(context.Background()); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	recs := h.store.records()
	if len(recs) != rounds {
		t.Fatalf("expected %d interactions, got %d", rounds, len(recs))
	}
	for i, rec := range recs {
		if rec.Mode != "edit" {
			t.Errorf("interaction %d: expected edit, got %s", i, rec.Mode)
		}
	}
}

func TestController_EditSessionCarriesSelection(t *testing.T) {
	sel := &countingSelection{text: "see you Monday"}
	h := newHarness(t, func(c *Config) {
		c.Context = staticContext("Dear")
		c.Selection = sel
	})

	_ = h.ctrl.Start(shared.ModeEdit)
	h.speak(200 * time.Millisecond)
	eventually(t, func() bool {
		streams := h.tx.all()
		if len(streams) != 1 {
			return false
		}
		cfgs, _ := streams[0].snapshot()
		return len(cfgs) > 0 && cfgs[len(cfgs)-1].SelectedText == "see you Monday" && cfgs[len(cfgs)-1].ContextText == "Dear"
	}, "selection and context never reached the stream")

	if err := h.ctrl.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	cfgs, _ := h.tx.all()[0].snapshot()
	final := cfgs[len(cfgs)-1]
	if final.SelectedText != "see you Monday" || final.ContextText != "Dear" {
		t.Errorf("expected selection and context in the final config, got %+v", final)
	}
}

func TestController_SelectionFetchedOnEditUpgrade(t *testing.T) {
	sel := &countingSelection{text: "see you Monday"}
	h := newHarness(t, func(c *Config) { c.Selection = sel })

	_ = h.ctrl.Start(shared.ModeTranscribe)
	h.speak(100 * time.Millisecond)
	if sel.calls.Load() != 0 {
		t.Error("transcribe session must not read the selection")
	}

	h.ctrl.SetMode(shared.ModeEdit)
	h.ctrl.SetMode(shared.ModeTranscribe)
	h.ctrl.SetMode(shared.ModeEdit)
	eventually(t, func() bool {
		streams := h.tx.all()
		if len(streams) != 1 {
			return false
		}
		cfgs, _ := streams[0].snapshot()
		return len(cfgs) > 0 && cfgs[len(cfgs)-1].SelectedText == "see you Monday"
	}, "selection never reached the stream")
	h.speak(100 * time.Millisecond)

	if err := h.ctrl.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if n := sel.calls.Load(); n != 1 {
		t.Errorf("expected one selection read, got %d", n)
	}
	cfgs, _ := h.tx.all()[0].snapshot()
	if final := cfgs[len(cfgs)-1]; final.SelectedText != "see you Monday" || final.Mode != shared.ModeEdit {
		t.Errorf("unexpected final config %+v", final)
	}
}

type gatedSelection struct {
	gate chan struct{}
}

func (g gatedSelection) Selection(ctx context.Context) string {
	select {
	case <-g.gate:
		return "see you Monday"
	case <-ctx.Done():
		return ""
	}
}

func TestController_CompleteWaitsForSelection(t *testing.T) {
	sel := gatedSelection{gate: make(chan struct{})}
	h := newHarness(t, func(c *Config) { c.Selection = sel })

	_ = h.ctrl.Start(shared.ModeEdit)
	h.speak(200 * time.Millisecond)
	go func() {
		time.Sleep(30 * time.Millisecond)
		close(sel.gate)
	}()
	if err := h.ctrl.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	cfgs, finished := h.tx.all()[0].snapshot()
	if finished != 1 || len(cfgs) == 0 {
		t.Fatalf("expected a finished stream with config, got %d configs", len(cfgs))
	}
	if final := cfgs[len(cfgs)-1]; final.SelectedText != "see you Monday" {
		t.Errorf("expected selection in the final config, got %+v", final)
	}
}
