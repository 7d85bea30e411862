package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"layeh.com/gopus"
)

// EndReason tags how a playback run finished. The controller needs the
// distinction: loop-requeue only fires on a natural end, never after a
// manual stop or skip.
type EndReason int

const (
	EndNatural EndReason = iota
	EndSkipped
	EndStopped
)

func (r EndReason) String() string {
	switch r {
	case EndNatural:
		return "natural"
	case EndSkipped:
		return "skipped"
	case EndStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Control steers a single playback run: pause/resume and a one-shot stop
// carrying the reason.
type Control struct {
	mu     sync.Mutex
	stopc  chan struct{}
	reason EndReason
	done   bool
	paused bool
}

// NewControl returns a Control ready for one run.
func NewControl() *Control {
	return &Control{stopc: make(chan struct{})}
}

// Stop ends the run with the given reason. Safe to call more than once; the
// first reason wins.
func (c *Control) Stop(reason EndReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.done = true
	c.reason = reason
	close(c.stopc)
}

// Done is closed once Stop has been called.
func (c *Control) Done() <-chan struct{} {
	return c.stopc
}

// SetPaused holds or resumes frame emission.
func (c *Control) SetPaused(paused bool) {
	c.mu.Lock()
	c.paused = paused
	c.mu.Unlock()
}

// Paused reports the pause flag.
func (c *Control) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// StopReason returns the reason passed to Stop.
func (c *Control) StopReason() EndReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Sink receives encoded opus frames. The discord adapter wraps a voice
// connection's OpusSend channel.
type Sink interface {
	Speaking(bool) error
	Send(opus []byte)
}

// Transmit reads s16le PCM from pcm, encodes 20ms opus frames and pushes them
// to the sink until the stream ends or ctl is stopped. Returns how the run
// ended; a natural end is the stream draining (EOF).
func Transmit(pcm io.Reader, sink Sink, ctl *Control) (EndReason, error) {
	encoder, err := gopus.NewEncoder(SampleRate, Channels, gopus.Audio)
	if err != nil {
		return EndStopped, fmt.Errorf("opus encoder: %w", err)
	}

	if err := sink.Speaking(true); err != nil {
		return EndStopped, fmt.Errorf("set speaking: %w", err)
	}
	defer func() { _ = sink.Speaking(false) }()

	pcmBuf := make([]byte, FrameSize*Channels*2)
	intBuf := make([]int16, FrameSize*Channels)

	for {
		select {
		case <-ctl.stopc:
			return ctl.StopReason(), nil
		default:
		}

		if ctl.Paused() {
			select {
			case <-ctl.stopc:
				return ctl.StopReason(), nil
			case <-time.After(20 * time.Millisecond):
			}
			continue
		}

		_, err := io.ReadFull(pcm, pcmBuf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return EndNatural, nil
			}
			return EndNatural, fmt.Errorf("pcm read: %w", err)
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		opus, err := encoder.Encode(intBuf, FrameSize, len(pcmBuf))
		if err != nil {
			return EndNatural, fmt.Errorf("opus encode: %w", err)
		}

		sink.Send(opus)
	}
}
