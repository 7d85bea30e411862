package player

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"groovebot/internal/music/queue"
	"groovebot/internal/music/session"
	"groovebot/internal/music/stream"
	"groovebot/internal/music/track"
)

type fakeConn struct {
	channelID    string
	disconnected bool
}

func (f *fakeConn) ChannelID() string { return f.channelID }
func (f *fakeConn) Speaking(bool) error { return nil }
func (f *fakeConn) Send([]byte) {}
func (f *fakeConn) Disconnect() error { f.disconnected = true; return nil }

type fakeOpener struct {
	opened int
	fail   error
}

func (f *fakeOpener) Open(ctx context.Context, url string) (*track.Track, io.ReadCloser, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}
	if f.fail != nil {
		return nil, nil, nil, f.fail
	}
	f.opened++
	meta := &track.Track{URL: url, Title: "t:" + url, Duration: 3 * time.Minute}
	return meta, io.NopCloser(bytes.NewReader(nil)), func() {}, nil
}

// blockingOpener parks Open until released, keeping the controller in
// Loading for as long as a test needs.
type blockingOpener struct {
	release chan struct{}
}

func (o *blockingOpener) Open(ctx context.Context, url string) (*track.Track, io.ReadCloser, func(), error) {
	select {
	case <-o.release:
	case <-ctx.Done():
		return nil, nil, nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}
	meta := &track.Track{URL: url, Title: "t:" + url, Duration: time.Minute}
	return meta, io.NopCloser(bytes.NewReader(nil)), func() {}, nil
}

// testRig wires a controller with a fake voice layer and a transmit that
// waits for either a manual stop or a simulated natural end.
type testRig struct {
	q     *queue.Store
	conn  *fakeConn
	joins int
	ctrl  *Controller
	end   chan stream.EndReason
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	rig := &testRig{
		q:   queue.NewStore(),
		end: make(chan stream.EndReason),
	}
	sessions := session.NewManager(func(guildID, channelID string) (session.Connection, error) {
		rig.joins++
		rig.conn = &fakeConn{channelID: channelID}
		return rig.conn, nil
	})
	rig.ctrl = New("g1", rig.q, sessions, &fakeOpener{})
	rig.ctrl.transmit = func(pcm io.Reader, sink stream.Sink, ctl *stream.Control) (stream.EndReason, error) {
		select {
		case <-ctl.Done():
			return ctl.StopReason(), nil
		case r := <-rig.end:
			return r, nil
		}
	}
	return rig
}

func (r *testRig) waitEvent(t *testing.T, want EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-r.ctrl.Events():
			if evt.Type == want {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %d", want)
		}
	}
}

func (r *testRig) finishNaturally(t *testing.T) {
	t.Helper()
	select {
	case r.end <- stream.EndNatural:
	case <-time.After(2 * time.Second):
		t.Fatal("no transmit run waiting for a natural end")
	}
}

func TestPlayNext_StartsPlayback(t *testing.T) {
	rig := newRig(t)
	rig.q.Enqueue("g1", "urlA")

	if err := rig.ctrl.PlayNext("voice1"); err != nil {
		t.Fatalf("PlayNext error: %v", err)
	}

	if rig.ctrl.State() != StatePlaying {
		t.Errorf("State = %v, want StatePlaying", rig.ctrl.State())
	}
	evt := rig.waitEvent(t, EventTrackStarted)
	if evt.Track.URL != "urlA" {
		t.Errorf("started track = %q, want urlA", evt.Track.URL)
	}
	if rig.joins != 1 {
		t.Errorf("joined %d times, want 1", rig.joins)
	}

	rig.finishNaturally(t)
	rig.waitEvent(t, EventDrained)
	if rig.ctrl.State() != StateIdle {
		t.Errorf("State after drain = %v, want StateIdle", rig.ctrl.State())
	}
	if !rig.conn.disconnected {
		t.Error("session should be released when the queue drains")
	}
}

func TestPlayNext_EmptyQueue(t *testing.T) {
	rig := newRig(t)

	if err := rig.ctrl.PlayNext("voice1"); !errors.Is(err, ErrNoTracksInQueue) {
		t.Errorf("error = %v, want ErrNoTracksInQueue", err)
	}
}

func TestPlayNext_RejectedWhileBusy(t *testing.T) {
	rig := newRig(t)
	rig.q.Enqueue("g1", "urlA")
	if err := rig.ctrl.PlayNext("voice1"); err != nil {
		t.Fatalf("PlayNext error: %v", err)
	}
	rig.waitEvent(t, EventTrackStarted)

	rig.q.Enqueue("g1", "urlB")
	if err := rig.ctrl.PlayNext("voice1"); !errors.Is(err, ErrBusy) {
		t.Errorf("second PlayNext error = %v, want ErrBusy", err)
	}

	rig.ctrl.Stop()
}

func TestSkip_AdvancesExactlyOnce(t *testing.T) {
	rig := newRig(t)
	rig.q.Enqueue("g1", "urlA")
	rig.q.Enqueue("g1", "urlB")

	if err := rig.ctrl.PlayNext("voice1"); err != nil {
		t.Fatalf("PlayNext error: %v", err)
	}
	rig.waitEvent(t, EventTrackStarted)

	if err := rig.ctrl.Skip(); err != nil {
		t.Fatalf("Skip error: %v", err)
	}

	ended := rig.waitEvent(t, EventTrackEnded)
	if ended.Reason != stream.EndSkipped {
		t.Errorf("end reason = %v, want EndSkipped", ended.Reason)
	}
	started := rig.waitEvent(t, EventTrackStarted)
	if started.Track.URL != "urlB" {
		t.Errorf("track after skip = %q, want urlB", started.Track.URL)
	}
	// The skip itself must not have dequeued: exactly one advance.
	if n := rig.q.Len("g1"); n != 0 {
		t.Errorf("queue length after skip-advance = %d, want 0", n)
	}

	rig.finishNaturally(t)
	rig.waitEvent(t, EventDrained)
	if rig.ctrl.State() != StateIdle {
		t.Errorf("State = %v, want StateIdle", rig.ctrl.State())
	}
}

func TestNaturalEnd_LoopRequeuesAtFront(t *testing.T) {
	rig := newRig(t)
	rig.q.Enqueue("g1", "urlA")
	rig.q.SetLoop("g1", true)

	if err := rig.ctrl.PlayNext("voice1"); err != nil {
		t.Fatalf("PlayNext error: %v", err)
	}
	rig.waitEvent(t, EventTrackStarted)

	rig.finishNaturally(t)

	started := rig.waitEvent(t, EventTrackStarted)
	if started.Track.URL != "urlA" {
		t.Errorf("looped track = %q, want urlA again", started.Track.URL)
	}
	if rig.conn.disconnected {
		t.Error("session must not be released while looping")
	}
	if rig.joins != 1 {
		t.Errorf("joined %d times, want 1 (connection reused)", rig.joins)
	}

	rig.ctrl.Stop()
}

func TestSkip_DoesNotRequeueWithLoopOn(t *testing.T) {
	rig := newRig(t)
	rig.q.Enqueue("g1", "urlA")
	rig.q.Enqueue("g1", "urlB")
	rig.q.SetLoop("g1", true)

	if err := rig.ctrl.PlayNext("voice1"); err != nil {
		t.Fatalf("PlayNext error: %v", err)
	}
	rig.waitEvent(t, EventTrackStarted)

	if err := rig.ctrl.Skip(); err != nil {
		t.Fatalf("Skip error: %v", err)
	}
	started := rig.waitEvent(t, EventTrackStarted)
	if started.Track.URL != "urlB" {
		t.Errorf("track after skip = %q, want urlB (skipped track not requeued)", started.Track.URL)
	}

	rig.ctrl.Stop()
}

func TestStop_ClearsEverything(t *testing.T) {
	rig := newRig(t)
	rig.q.Enqueue("g1", "urlA")
	rig.q.Enqueue("g1", "urlB")
	rig.q.SetLoop("g1", true)

	if err := rig.ctrl.PlayNext("voice1"); err != nil {
		t.Fatalf("PlayNext error: %v", err)
	}
	rig.waitEvent(t, EventTrackStarted)

	rig.ctrl.Stop()

	ended := rig.waitEvent(t, EventTrackEnded)
	if ended.Reason != stream.EndStopped {
		t.Errorf("end reason = %v, want EndStopped", ended.Reason)
	}
	waitFor(t, func() bool { return rig.ctrl.State() == StateIdle })
	if rig.q.Len("g1") != 0 {
		t.Errorf("queue length after stop = %d, want 0", rig.q.Len("g1"))
	}
	if rig.q.LoopEnabled("g1") {
		t.Error("stop must disable loop")
	}
	if !rig.conn.disconnected {
		t.Error("stop must release the voice session")
	}
}

func TestPauseResume(t *testing.T) {
	rig := newRig(t)
	rig.q.Enqueue("g1", "urlA")
	if err := rig.ctrl.PlayNext("voice1"); err != nil {
		t.Fatalf("PlayNext error: %v", err)
	}
	rig.waitEvent(t, EventTrackStarted)

	if err := rig.ctrl.Pause(); err != nil {
		t.Fatalf("Pause error: %v", err)
	}
	if rig.ctrl.State() != StatePaused {
		t.Errorf("State = %v, want StatePaused", rig.ctrl.State())
	}
	// Pausing twice is not a valid transition.
	if err := rig.ctrl.Pause(); !errors.Is(err, ErrNoTrackPlaying) {
		t.Errorf("second Pause error = %v, want ErrNoTrackPlaying", err)
	}

	if err := rig.ctrl.Resume(); err != nil {
		t.Fatalf("Resume error: %v", err)
	}
	if rig.ctrl.State() != StatePlaying {
		t.Errorf("State = %v, want StatePlaying", rig.ctrl.State())
	}

	rig.ctrl.Stop()
}

func TestPlayNext_LoadFailureReturnsToIdle(t *testing.T) {
	rig := newRig(t)
	failing := &fakeOpener{fail: errors.New("fetch failed")}
	rig.ctrl.opener = failing
	rig.q.Enqueue("g1", "urlA")

	err := rig.ctrl.PlayNext("voice1")
	if err == nil {
		t.Fatal("PlayNext should fail when the stream cannot be opened")
	}
	if rig.ctrl.State() != StateIdle {
		t.Errorf("State = %v, want StateIdle", rig.ctrl.State())
	}
	if rig.conn != nil && !rig.conn.disconnected {
		t.Error("failed load must not leave a half-bound session")
	}
}

func TestPlayNext_SecondPlayDuringLoadRejected(t *testing.T) {
	rig := newRig(t)
	opener := &blockingOpener{release: make(chan struct{})}
	rig.ctrl.opener = opener
	rig.q.Enqueue("g1", "urlA")
	rig.q.Enqueue("g1", "urlB")

	errCh := make(chan error, 1)
	go func() { errCh <- rig.ctrl.PlayNext("voice1") }()
	waitFor(t, func() bool { return rig.ctrl.State() == StateLoading })

	// The slot is claimed for the whole load, so a concurrent play must be
	// rejected without dequeuing anything.
	if err := rig.ctrl.PlayNext("voice1"); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent PlayNext error = %v, want ErrBusy", err)
	}
	if n := rig.q.Len("g1"); n != 1 {
		t.Errorf("pending after rejected play = %d, want 1", n)
	}

	close(opener.release)
	if err := <-errCh; err != nil {
		t.Fatalf("PlayNext error: %v", err)
	}
	started := rig.waitEvent(t, EventTrackStarted)
	if started.Track.URL != "urlA" {
		t.Errorf("started track = %q, want urlA", started.Track.URL)
	}

	rig.ctrl.Stop()
}

func TestStop_DuringLoadCancelsStaleRun(t *testing.T) {
	rig := newRig(t)
	opener := &blockingOpener{release: make(chan struct{})}
	rig.ctrl.opener = opener
	rig.q.Enqueue("g1", "urlA")

	errCh := make(chan error, 1)
	go func() { errCh <- rig.ctrl.PlayNext("voice1") }()
	waitFor(t, func() bool { return rig.ctrl.State() == StateLoading })

	rig.ctrl.Stop()
	close(opener.release)

	if err := <-errCh; err == nil {
		t.Fatal("PlayNext should fail when stopped mid-load")
	}
	if rig.ctrl.State() != StateIdle {
		t.Errorf("State = %v, want StateIdle", rig.ctrl.State())
	}
	if !rig.conn.disconnected {
		t.Error("stop during load must release the voice session")
	}
	select {
	case evt := <-rig.ctrl.Events():
		if evt.Type == EventTrackStarted {
			t.Error("stale load must not start playback")
		}
	default:
	}

	// The controller must come back clean for the next play.
	rig.q.Enqueue("g1", "urlB")
	if err := rig.ctrl.PlayNext("voice1"); err != nil {
		t.Fatalf("PlayNext after stopped load error: %v", err)
	}
	rig.waitEvent(t, EventTrackStarted)
	rig.ctrl.Stop()
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
