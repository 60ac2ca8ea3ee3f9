package input

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"ticket-kiosk/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeStream serves queued reads and blocks when empty until closed.
type fakeStream struct {
	reads  chan fakeRead
	closed chan struct{}
	once   sync.Once
}

type fakeRead struct {
	events []Event
	err    error
}

func newFakeStream(batches ...[]Event) *fakeStream {
	s := &fakeStream{
		reads:  make(chan fakeRead, 16),
		closed: make(chan struct{}),
	}
	for _, b := range batches {
		s.push(b, nil)
	}
	return s
}

func (s *fakeStream) push(events []Event, err error) {
	s.reads <- fakeRead{events: events, err: err}
}

func (s *fakeStream) ReadEvents() ([]Event, error) {
	select {
	case r := <-s.reads:
		return r.events, r.err
	case <-s.closed:
		return nil, errors.New("stream closed")
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// fakeOpener hands out streams in order and fails when none are left.
type fakeOpener struct {
	mu      sync.Mutex
	streams []EventStream
	calls   int
}

func (o *fakeOpener) open() (EventStream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if len(o.streams) == 0 {
		return nil, ErrNoDevice
	}
	s := o.streams[0]
	o.streams = o.streams[1:]
	return s, nil
}

func (o *fakeOpener) opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func newTestKeystrokeSource(o *fakeOpener, h Handler) *KeystrokeSource {
	src := NewKeystrokeSource(SourceScanner, o.open, h, zerolog.Nop())
	src.retryInitial = time.Millisecond
	src.retryMax = 5 * time.Millisecond
	return src
}

// runSource starts src and returns a stop function that cancels it and
// waits for Run to return nil.
func runSource(t *testing.T, run func(context.Context) error) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	return func() {
		t.Helper()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("source did not stop")
		}
	}
}

// recorder collects submissions.
type recorder struct {
	mu   sync.Mutex
	got  []string
	errs error
}

func (r *recorder) Handle(ctx context.Context, source, raw string) (model.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, source+":"+raw)
	return model.OutcomeGranted, r.errs
}

func (r *recorder) submissions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestKeystrokeSource_SubmitsAndStopsOnCancel(t *testing.T) {
	events := typed("123456789012345")
	stream := newFakeStream(events[:7], events[7:])
	rec := &recorder{}

	stop := runSource(t, newTestKeystrokeSource(&fakeOpener{streams: []EventStream{stream}}, rec).Run)

	require.Eventually(t, func() bool { return len(rec.submissions()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"scanner:123456789012345"}, rec.submissions())

	stop()
	assert.True(t, stream.isClosed())
}

func TestKeystrokeSource_HandlerErrorDoesNotStop(t *testing.T) {
	stream := newFakeStream(typed("1"), typed("2"))
	rec := &recorder{errs: errors.New("disk full")}

	stop := runSource(t, newTestKeystrokeSource(&fakeOpener{streams: []EventStream{stream}}, rec).Run)
	defer stop()

	require.Eventually(t, func() bool { return len(rec.submissions()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestKeystrokeSource_TransientErrorKeepsReading(t *testing.T) {
	stream := newFakeStream()
	stream.push(nil, &os.PathError{Op: "read", Path: "/dev/input/event3", Err: unix.EAGAIN})
	stream.push(typed("1"), nil)
	opener := &fakeOpener{streams: []EventStream{stream}}
	rec := &recorder{}

	stop := runSource(t, newTestKeystrokeSource(opener, rec).Run)
	defer stop()

	require.Eventually(t, func() bool { return len(rec.submissions()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"scanner:1"}, rec.submissions())
	assert.Equal(t, 1, opener.opened())
	assert.False(t, stream.isClosed())
}

func TestKeystrokeSource_StreamFailureReopens(t *testing.T) {
	unplugged := newFakeStream()
	partial := typed("12")
	unplugged.push(partial[:4], nil)
	unplugged.push(nil, &os.PathError{Op: "read", Path: "/dev/input/event3", Err: unix.ENODEV})
	replugged := newFakeStream(typed("3"))
	opener := &fakeOpener{streams: []EventStream{unplugged, replugged}}
	rec := &recorder{}

	stop := runSource(t, newTestKeystrokeSource(opener, rec).Run)
	defer stop()

	require.Eventually(t, func() bool { return len(rec.submissions()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"scanner:3"}, rec.submissions())
	assert.Equal(t, 2, opener.opened())
	assert.True(t, unplugged.isClosed())
}

func TestKeystrokeSource_OpenFailureRetries(t *testing.T) {
	rec := &recorder{}
	opener := &fakeOpener{}

	stop := runSource(t, newTestKeystrokeSource(opener, rec).Run)
	defer stop()

	require.Eventually(t, func() bool { return opener.opened() >= 3 }, time.Second, time.Millisecond)

	opener.mu.Lock()
	opener.streams = append(opener.streams, newFakeStream(typed("4")))
	opener.mu.Unlock()

	require.Eventually(t, func() bool { return len(rec.submissions()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"scanner:4"}, rec.submissions())
}

func TestKeystrokeSource_CancelDuringBackOff(t *testing.T) {
	src := NewKeystrokeSource(SourceScanner, (&fakeOpener{}).open, &recorder{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("keystroke source did not stop during back-off")
	}
}
