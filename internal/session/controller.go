package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/heyito/ito-sub003/internal/audio"
	"github.com/heyito/ito-sub003/internal/interaction"
	"github.com/heyito/ito-sub003/internal/shared"
	"github.com/heyito/ito-sub003/internal/transcription"
)

type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
	StateCancelled  State = "cancelled"
	StateCompleted  State = "completed"
)

const (
	DefaultMinDuration    = 100 * time.Millisecond
	DefaultNoAudioTimeout = 5 * time.Second
	persistTimeout        = 5 * time.Second
)

var ErrNoAudio = errors.New("no audio received from recorder")

type Config struct {
	Recorder    Recorder
	Transcriber Transcriber
	Inserter    TextInserter
	Context     ContextFetcher
	Selection   SelectionFetcher
	Vocabulary  VocabularySource
	Processor   TextProcessor
	Store       InteractionStore
	Observer    Observer

	Metadata       transcription.Metadata
	SampleRate     int
	MinDuration    time.Duration
	NoAudioTimeout time.Duration
}

// Controller owns the lifecycle of push-to-talk sessions. At most one
// session is recording or finalizing at any time.
type Controller struct {
	cfg Config
	log *slog.Logger
	bus *bus

	mu      sync.Mutex
	current *active
}

// active is the state of one recording cycle. Everything spawned for it
// carries its id and checks it before applying results.
type active struct {
	id        string
	mode      shared.Mode
	state     State
	startedAt time.Time
	pipeline  *audio.Pipeline
	ctx       context.Context
	cancel    context.CancelFunc
	watchdog  *time.Timer
	gotAudio  bool
	stopping  bool
	config    transcription.StreamConfig

	// selected is closed once the selection for an edit session is known.
	selected chan struct{}

	// delivering is set once a result is committed to the user; Cancel
	// no longer applies from that point.
	delivering bool

	streamReady chan struct{}
	stream      TranscriptionStream
	streamErr   error
	sendMu      sync.Mutex
}

func NewController(cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = DefaultMinDuration
	}
	if cfg.NoAudioTimeout <= 0 {
		cfg.NoAudioTimeout = DefaultNoAudioTimeout
	}

	c := &Controller{
		cfg: cfg,
		log: logger.With("component", "session_controller"),
	}
	c.bus = newBus(c.log, func(ev Event) {
		if ev.Type == EventVolume && cfg.Observer != nil {
			cfg.Observer.ObserveVolumeDropped()
		}
	})
	return c
}

func (c *Controller) Subscribe() *Subscription {
	return c.bus.subscribe()
}

// State reports the state of the current session, or StateIdle.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return StateIdle
	}
	return c.current.state
}

// SessionID returns the id of the current session, if any.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.id
}

// Start begins a session in mode. It is a no-op unless the controller is idle.
func (c *Controller) Start(mode shared.Mode) error {
	if !mode.Valid() {
		mode = shared.ModeTranscribe
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		c.log.Debug("start ignored, session in progress")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	var selected chan struct{}
	if mode == shared.ModeEdit && c.cfg.Selection != nil {
		selected = make(chan struct{})
	}
	sess := &active{
		id:          uuid.NewString(),
		mode:        mode,
		state:       StateRecording,
		startedAt:   time.Now(),
		pipeline:    audio.NewPipeline(c.cfg.SampleRate),
		ctx:         ctx,
		cancel:      cancel,
		selected:    selected,
		config:      transcription.StreamConfig{Mode: mode},
		streamReady: make(chan struct{}),
	}
	c.current = sess
	c.mu.Unlock()

	log := c.log.With("session_id", sess.id)

	if err := c.cfg.Recorder.StartCapture(ctx); err != nil {
		log.Error("start capture failed", "error", err)
		c.release(sess, StateCancelled)
		c.publish(sess, Event{Type: EventTranscriptionError, Error: err.Error(), Kind: shared.KindOf(err)})
		c.observe(sess, "error")
		return fmt.Errorf("start capture: %w", err)
	}

	c.mu.Lock()
	if c.current != sess {
		c.mu.Unlock()
		_ = c.cfg.Recorder.StopCapture(context.Background())
		return nil
	}
	sess.watchdog = time.AfterFunc(c.cfg.NoAudioTimeout, func() { c.checkAudio(sess.id) })
	c.mu.Unlock()

	log.Info("recording started", "mode", mode)
	c.publish(sess, Event{Type: EventRecordingStarted, Mode: mode})

	go c.prepare(sess, mode)
	if selected != nil {
		go c.fetchSelection(sess, selected)
	}
	return nil
}

// SetMode switches the mode of a recording session without restarting capture.
func (c *Controller) SetMode(mode shared.Mode) {
	if !mode.Valid() {
		return
	}
	c.mu.Lock()
	sess := c.current
	if sess == nil || sess.state != StateRecording || sess.mode == mode {
		c.mu.Unlock()
		return
	}
	sess.mode = mode
	sess.config.Mode = mode
	var selected chan struct{}
	if mode == shared.ModeEdit && c.cfg.Selection != nil && sess.selected == nil {
		selected = make(chan struct{})
		sess.selected = selected
	}
	c.mu.Unlock()

	c.log.Debug("mode changed", "session_id", sess.id, "mode", mode)
	go c.pushConfig(sess)
	if selected != nil {
		go c.fetchSelection(sess, selected)
	}
}

// HandleAudio feeds one PCM16 frame from the recorder into the current session.
func (c *Controller) HandleAudio(pcm []byte, at time.Time) {
	c.mu.Lock()
	sess := c.current
	if sess == nil || sess.state != StateRecording {
		c.mu.Unlock()
		return
	}
	sess.gotAudio = true
	vol, ok := sess.pipeline.PushFrame(pcm, at)
	var history []float64
	if ok {
		history = sess.pipeline.History()
	}
	c.mu.Unlock()

	if ok {
		c.publish(sess, Event{Type: EventVolume, Level: vol.Level, History: history})
	}
}

// Cancel aborts the current session from Recording or Finalizing. Nothing is
// transcribed, inserted or stored.
func (c *Controller) Cancel() {
	c.mu.Lock()
	sess := c.current
	if sess == nil {
		c.mu.Unlock()
		return
	}
	if sess.delivering {
		c.mu.Unlock()
		c.log.Debug("cancel ignored, result already delivering", "session_id", sess.id)
		return
	}
	wasRecording := sess.state == StateRecording
	c.mu.Unlock()

	c.log.Info("session cancelled", "session_id", sess.id)
	if wasRecording {
		c.stopCapture(sess)
	}
	c.release(sess, StateCancelled)
	if wasRecording {
		c.publish(sess, Event{Type: EventRecordingStopped})
	}
	c.observe(sess, "cancelled")
}

// Complete stops capture and transcribes the recording. Every exit path ends
// idle with the session's buffers released.
func (c *Controller) Complete(ctx context.Context) error {
	c.mu.Lock()
	sess := c.current
	if sess == nil || sess.state != StateRecording || sess.stopping {
		c.mu.Unlock()
		return nil
	}
	sess.stopping = true
	if sess.watchdog != nil {
		sess.watchdog.Stop()
	}
	c.mu.Unlock()

	// Frames drained by the recorder after the stop command still belong to
	// this recording.
	c.stopCapture(sess)

	c.mu.Lock()
	if c.current != sess {
		c.mu.Unlock()
		return nil
	}
	sess.state = StateFinalizing
	pcm := sess.pipeline.Finalize()
	c.mu.Unlock()

	log := c.log.With("session_id", sess.id)
	outcome := StateCompleted
	defer func() { c.release(sess, outcome) }()

	c.publish(sess, Event{Type: EventRecordingStopped})

	duration := audio.Duration(pcm, c.cfg.SampleRate)
	if duration < c.cfg.MinDuration {
		log.Debug("recording too short, discarding", "duration_ms", duration.Milliseconds())
		outcome = StateCancelled
		c.observe(sess, "too_short")
		return nil
	}

	enhanced := audio.Enhance(pcm, c.cfg.SampleRate)

	stream, err := c.awaitStream(ctx, sess)
	if err == nil {
		stop := context.AfterFunc(ctx, stream.Cancel)
		defer stop()

		c.mu.Lock()
		selected := sess.selected
		c.mu.Unlock()
		if selected != nil {
			select {
			case <-selected:
			case <-ctx.Done():
			}
		}

		if err := c.sendConfig(sess, stream); err != nil {
			log.Debug("final config update failed", "error", err)
		}

		var res transcription.Result
		res, err = stream.Finish(enhanced)
		if err == nil {
			mode, ok := c.beginDelivery(sess)
			if !ok {
				log.Debug("transcription discarded, session cancelled")
				outcome = StateCancelled
				return shared.ErrCancelled
			}
			return c.deliver(ctx, sess, mode, res, enhanced, duration)
		}
	}

	if !c.isCurrent(sess) || (shared.KindOf(err) == shared.KindCancelled && ctx.Err() == nil) {
		log.Debug("transcription discarded, session cancelled")
		outcome = StateCancelled
		return shared.ErrCancelled
	}
	if ctx.Err() != nil {
		err = fmt.Errorf("transcription timed out: %w", ctx.Err())
	}
	log.Error("transcription failed", "error", err)
	c.publish(sess, Event{Type: EventTranscriptionError, Error: err.Error(), Kind: shared.KindOf(err)})
	c.observe(sess, "error")
	return err
}

// beginDelivery commits the session's result. It fails when the session was
// cancelled or replaced while the result was in flight.
func (c *Controller) beginDelivery(sess *active) (shared.Mode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != sess {
		return "", false
	}
	sess.delivering = true
	return sess.mode, true
}

func (c *Controller) deliver(ctx context.Context, sess *active, mode shared.Mode, res transcription.Result, pcm []byte, duration time.Duration) error {
	log := c.log.With("session_id", sess.id)
	rec := &interaction.Interaction{
		SessionID:  sess.id,
		Mode:       mode.String(),
		Audio:      audio.ToWav(pcm, c.cfg.SampleRate, 1, 16),
		DurationMs: duration.Milliseconds(),
	}

	if res.Failure != nil {
		log.Warn("transcription failure", "kind", res.Failure.Kind, "message", res.Failure.Message)
		rec.ErrorMessage = res.Failure.Message
		c.persist(ctx, rec)
		c.publish(sess, Event{Type: EventTranscriptionError, Error: res.Failure.Message, Kind: res.Failure.Kind})
		c.observe(sess, "failed")
		return res.Failure
	}

	text := res.Transcript
	if text != "" {
		if c.cfg.Processor != nil {
			c.mu.Lock()
			existing := sess.config.ContextText
			c.mu.Unlock()
			text = c.cfg.Processor.Apply(text, existing)
		}
		if !c.cfg.Inserter.InsertText(text) {
			log.Warn("text insertion failed")
			if c.cfg.Observer != nil {
				c.cfg.Observer.ObserveInsertionFailure()
			}
		}
	}

	rec.Transcript = text
	c.persist(ctx, rec)
	c.publish(sess, Event{Type: EventTranscriptionResult, Transcript: text})

	outcome := "completed"
	if text == "" {
		outcome = "empty"
	}
	log.Info("session complete", "outcome", outcome, "duration_ms", duration.Milliseconds())
	c.observe(sess, outcome)
	return nil
}

// prepare runs off the start path: it opens the stream, then gathers cursor
// context and vocabulary and pushes them as a config update.
func (c *Controller) prepare(sess *active, mode shared.Mode) {
	stream, err := c.cfg.Transcriber.Open(sess.ctx, transcription.OpenRequest{
		SessionID: sess.id,
		Mode:      mode,
		Metadata:  c.cfg.Metadata,
	})
	c.mu.Lock()
	sess.stream, sess.streamErr = stream, err
	c.mu.Unlock()
	close(sess.streamReady)
	if err != nil {
		c.log.Warn("open stream failed", "session_id", sess.id, "error", err)
		return
	}

	var (
		wg          sync.WaitGroup
		contextText string
		vocabulary  string
	)
	if c.cfg.Context != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			contextText = c.cfg.Context.Fetch(sess.ctx)
		}()
	}
	if c.cfg.Vocabulary != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.cfg.Vocabulary.Vocabulary(sess.ctx)
			if err != nil {
				c.log.Debug("vocabulary unavailable", "session_id", sess.id, "error", err)
				return
			}
			vocabulary = v
		}()
	}
	wg.Wait()

	c.mu.Lock()
	if c.current == nil || c.current.id != sess.id {
		c.mu.Unlock()
		c.log.Debug("discarding stale session context", "session_id", sess.id)
		return
	}
	sess.config.ContextText = contextText
	sess.config.Vocabulary = vocabulary
	c.mu.Unlock()

	if contextText != "" || vocabulary != "" {
		c.pushConfig(sess)
	}
}

// fetchSelection reads the text an edit command applies to. The fetcher
// bounds its own wait, so Complete can block on done.
func (c *Controller) fetchSelection(sess *active, done chan struct{}) {
	defer close(done)
	text := c.cfg.Selection.Selection(sess.ctx)

	c.mu.Lock()
	if c.current != sess {
		c.mu.Unlock()
		c.log.Debug("discarding stale selection", "session_id", sess.id)
		return
	}
	sess.config.SelectedText = text
	recording := sess.state == StateRecording
	c.mu.Unlock()

	// Once finalizing, Complete sends the config itself.
	if text != "" && recording {
		c.pushConfig(sess)
	}
}

func (c *Controller) pushConfig(sess *active) {
	select {
	case <-sess.streamReady:
	case <-sess.ctx.Done():
		return
	}
	if sess.stream == nil || !c.isCurrent(sess) {
		return
	}
	if err := c.sendConfig(sess, sess.stream); err != nil {
		c.log.Debug("config update failed", "session_id", sess.id, "error", err)
	}
}

// sendConfig sends the session's latest config. Sends are serialized and
// snapshot under the lock, so an older config never lands after a newer one.
func (c *Controller) sendConfig(sess *active, stream TranscriptionStream) error {
	sess.sendMu.Lock()
	defer sess.sendMu.Unlock()
	c.mu.Lock()
	cfg := sess.config
	c.mu.Unlock()
	return stream.UpdateConfig(cfg)
}

func (c *Controller) awaitStream(ctx context.Context, sess *active) (TranscriptionStream, error) {
	select {
	case <-sess.streamReady:
	case <-sess.ctx.Done():
		return nil, fmt.Errorf("await stream: %w", shared.ErrCancelled)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return sess.stream, sess.streamErr
}

func (c *Controller) checkAudio(id string) {
	c.mu.Lock()
	sess := c.current
	if sess == nil || sess.id != id || sess.state != StateRecording || sess.gotAudio {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.log.Warn("no audio received, cancelling session", "session_id", id, "recorder_alive", c.cfg.Recorder.IsAlive())
	c.stopCapture(sess)
	c.release(sess, StateCancelled)
	c.publish(sess, Event{Type: EventRecordingStopped})
	c.publish(sess, Event{Type: EventTranscriptionError, Error: ErrNoAudio.Error(), Kind: shared.KindInternal})
	c.observe(sess, "no_audio")
}

// release is the single cleanup step for a session. It is safe to call more
// than once and never touches a newer session.
func (c *Controller) release(sess *active, final State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sess.watchdog != nil {
		sess.watchdog.Stop()
	}
	sess.cancel()
	sess.pipeline.Reset()
	if c.current == sess {
		sess.state = final
		c.current = nil
	}
}

func (c *Controller) isCurrent(sess *active) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == sess
}

func (c *Controller) stopCapture(sess *active) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.cfg.Recorder.StopCapture(ctx); err != nil {
		c.log.Warn("stop capture failed", "session_id", sess.id, "error", err)
	}
}

func (c *Controller) persist(ctx context.Context, rec *interaction.Interaction) {
	if c.cfg.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := c.cfg.Store.Create(ctx, rec); err != nil {
		c.log.Error("persist interaction failed", "session_id", rec.SessionID, "error", err)
	}
}

func (c *Controller) publish(sess *active, ev Event) {
	ev.SessionID = sess.id
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	c.bus.publish(ev)
}

func (c *Controller) observe(sess *active, outcome string) {
	if c.cfg.Observer == nil {
		return
	}
	c.mu.Lock()
	mode := sess.mode
	c.mu.Unlock()
	c.cfg.Observer.ObserveSession(mode.String(), outcome)
}

// Close cancels any session in progress and ends all subscriptions.
func (c *Controller) Close() {
	c.Cancel()
	c.bus.closeAll()
}
