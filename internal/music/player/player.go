// Package player drives per-guild playback: the Idle/Loading/Playing/Paused
// lifecycle, queue advancement on track end, and voice session teardown when
// the queue drains. Track ends carry a tagged reason so loop-requeue can only
// fire on a natural end, never after a manual stop or skip.
package player

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"groovebot/internal/music/queue"
	"groovebot/internal/music/session"
	"groovebot/internal/music/stream"
	"groovebot/internal/music/track"
)

// State is the controller's playback state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// EventType tags controller events consumed by the UI layer.
type EventType int

const (
	EventTrackStarted EventType = iota
	EventTrackEnded
	EventDrained
	EventError
)

// Event is emitted on the controller's event channel.
type Event struct {
	Type   EventType
	Track  *track.Track
	Reason stream.EndReason
	Err    error
}

var (
	ErrNoTracksInQueue = errors.New("no tracks in queue")
	ErrBusy            = errors.New("a track is already loading or playing")
	ErrNoTrackPlaying  = errors.New("no track is currently playing")
)

type transmitFunc func(pcm io.Reader, sink stream.Sink, ctl *stream.Control) (stream.EndReason, error)

// Controller owns playback for one guild.
type Controller struct {
	guildID  string
	queue    *queue.Store
	sessions *session.Manager
	opener   stream.Opener
	transmit transmitFunc

	mu         sync.Mutex
	state      State
	current    *track.Track
	ctl        *stream.Control
	channelID  string
	runSeq     uint64
	activeRun  uint64
	cancelLoad context.CancelFunc

	events chan Event
}

// New creates a Controller for the guild.
func New(guildID string, q *queue.Store, sessions *session.Manager, opener stream.Opener) *Controller {
	return &Controller{
		guildID:  guildID,
		queue:    q,
		sessions: sessions,
		opener:   opener,
		transmit: stream.Transmit,
		events:   make(chan Event, 16),
	}
}

// Events returns the controller's event channel. Events are dropped, not
// blocked on, when the consumer falls behind.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a track is loading, playing or paused.
func (c *Controller) Busy() bool {
	return c.State() != StateIdle
}

// Current returns the playing (or paused) track, nil otherwise.
func (c *Controller) Current() *track.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// PlayNext pops the front of the queue and starts it in the requester's voice
// channel. A second play while one is already loading or playing is rejected;
// the caller should enqueue instead.
func (c *Controller) PlayNext(requesterChannelID string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	// Claim the in-flight slot before releasing the lock. Interactions are
	// dispatched concurrently; two plays passing the guard together would
	// both dequeue and the loser's track would be silently dropped.
	c.state = StateLoading
	c.channelID = requesterChannelID
	c.mu.Unlock()

	url, ok := c.queue.DequeueNext(c.guildID)
	if !ok {
		c.setIdle()
		return ErrNoTracksInQueue
	}

	if err := c.startTrack(url); err != nil {
		// Nothing is playing; don't leave a half-bound session behind.
		c.sessions.Release(c.guildID)
		c.setIdle()
		return err
	}
	return nil
}

// Pause holds playback. No-op unless currently playing.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying || c.ctl == nil {
		return ErrNoTrackPlaying
	}
	c.ctl.SetPaused(true)
	c.state = StatePaused
	return nil
}

// Resume releases a pause. No-op unless currently paused.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused || c.ctl == nil {
		return ErrNoTrackPlaying
	}
	c.ctl.SetPaused(false)
	c.state = StatePlaying
	return nil
}

// Skip ends the current track only; the tagged end signal advances the queue
// exactly once. Skip never dequeues by itself.
func (c *Controller) Skip() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctl == nil {
		return ErrNoTrackPlaying
	}
	c.ctl.Stop(stream.EndSkipped)
	return nil
}

// Stop clears the queue, disables loop, ends the current track and tears the
// voice session down. State is settled under a single lock acquisition: a
// load committing concurrently either becomes the active run before the lock
// is taken (and gets a tagged stop) or observes the cancelled context and
// aborts, so a stale load cannot revive the session.
func (c *Controller) Stop() {
	c.queue.Clear(c.guildID)

	c.mu.Lock()
	if ctl := c.ctl; ctl != nil {
		c.mu.Unlock()
		ctl.Stop(stream.EndStopped)
		return // teardown finishes in the run's end handler
	}
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	c.state = StateIdle
	c.current = nil
	c.cancelLoad = nil
	c.mu.Unlock()

	c.sessions.Release(c.guildID)
}

// startTrack loads and starts one track: acquire connection, open stream,
// bind the run, transmit in a goroutine.
func (c *Controller) startTrack(url string) error {
	c.mu.Lock()
	if c.state == StateIdle {
		// A stop landed between claiming the slot and reaching the load.
		c.mu.Unlock()
		return context.Canceled
	}
	c.state = StateLoading
	c.runSeq++
	myRun := c.runSeq
	loadCtx, cancel := context.WithCancel(context.Background())
	c.cancelLoad = cancel
	channelID := c.channelID
	c.mu.Unlock()
	defer cancel()

	conn, err := c.sessions.AcquireConnection(c.guildID, channelID)
	if err != nil {
		return err
	}

	meta, pcm, cleanup, err := c.opener.Open(loadCtx, url)
	if err != nil {
		if loadCtx.Err() != nil {
			return loadCtx.Err() // stop cancelled the load
		}
		c.emit(Event{Type: EventError, Err: err})
		return err
	}

	ctl := stream.NewControl()
	c.sessions.BindPlayer(c.guildID, func() { ctl.Stop(stream.EndStopped) })

	c.mu.Lock()
	if loadCtx.Err() != nil {
		// Stopped while the stream was opening.
		c.mu.Unlock()
		cleanup()
		return loadCtx.Err()
	}
	c.state = StatePlaying
	c.current = meta
	c.ctl = ctl
	c.activeRun = myRun
	c.cancelLoad = nil
	c.mu.Unlock()

	log.Printf("[INFO] Now playing %q on guild %s", meta.Title, c.guildID)
	c.emit(Event{Type: EventTrackStarted, Track: meta})

	go func() {
		reason, err := c.transmit(pcm, conn, ctl)
		cleanup()
		if err != nil {
			log.Printf("[WARN] Playback ended with error on guild %s: %v", c.guildID, err)
		}
		c.handleEnd(myRun, url, meta, reason)
	}()
	return nil
}

// handleEnd runs when a playback goroutine finishes. Only the run that is
// still current may mutate controller state or advance the queue; a run that
// was replaced by BindPlayer just reports its end.
func (c *Controller) handleEnd(myRun uint64, url string, meta *track.Track, reason stream.EndReason) {
	c.mu.Lock()
	if c.activeRun != myRun {
		c.mu.Unlock()
		c.emit(Event{Type: EventTrackEnded, Track: meta, Reason: reason})
		return
	}
	c.current = nil
	c.ctl = nil
	c.mu.Unlock()

	c.emit(Event{Type: EventTrackEnded, Track: meta, Reason: reason})
	log.Printf("[INFO] Track ended (%s) on guild %s", reason, c.guildID)

	switch reason {
	case stream.EndStopped:
		// Stop already cleared the queue; finish the teardown here.
		c.sessions.Release(c.guildID)
		c.setIdle()
		return
	case stream.EndNatural:
		c.queue.RequeueIfLooping(c.guildID, url)
	case stream.EndSkipped:
		// Advance only; the skipped track is not requeued even with loop on.
	}

	c.advance()
}

// advance plays queue entries until one starts or the queue drains. Tracks
// that fail to load are reported and skipped, like the rest of the queue run.
func (c *Controller) advance() {
	for {
		next, ok := c.queue.DequeueNext(c.guildID)
		if !ok {
			c.sessions.Release(c.guildID)
			c.setIdle()
			c.emit(Event{Type: EventDrained})
			return
		}
		err := c.startTrack(next)
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("[WARN] Skipping unplayable track on guild %s: %v", c.guildID, err)
	}
}

func (c *Controller) setIdle() {
	c.mu.Lock()
	c.state = StateIdle
	c.current = nil
	c.ctl = nil
	c.cancelLoad = nil
	c.mu.Unlock()
}

// emit sends without blocking; a stalled consumer drops events.
func (c *Controller) emit(evt Event) {
	select {
	case c.events <- evt:
	default:
		log.Printf("[DEBUG] Player event dropped (channel full) on guild %s", c.guildID)
	}
}
