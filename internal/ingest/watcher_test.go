package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ticket-kiosk/internal/metrics"
	"ticket-kiosk/internal/store"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	codeA = "123456789012345"
	codeB = "111111111111115"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := store.DefaultConfig()
	cfg.Dir = t.TempDir()
	s, err := store.Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// counterValue sums every series of the named counter.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

// fakeIngester is a func-field Ingester.
type fakeIngester struct {
	mu         sync.Mutex
	calls      int
	ingestFunc func(ctx context.Context, codes []string) (int, error)
}

func (f *fakeIngester) Ingest(ctx context.Context, codes []string) (int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.ingestFunc != nil {
		return f.ingestFunc(ctx, codes)
	}
	return len(codes), nil
}

// fakeBatch is an in-memory Batch.
type fakeBatch struct {
	location  string
	content   string
	openErr   error
	removeErr error
	removed   bool
}

func (b *fakeBatch) Location() string { return b.location }

func (b *fakeBatch) Open(ctx context.Context) (io.ReadCloser, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return io.NopCloser(strings.NewReader(b.content)), nil
}

func (b *fakeBatch) Remove(ctx context.Context) error {
	if b.removeErr != nil {
		return b.removeErr
	}
	b.removed = true
	return nil
}

// staticSource returns the same batches on every Discover.
type staticSource struct {
	name    string
	batches []Batch
	err     error
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Discover(ctx context.Context) ([]Batch, error) {
	return s.batches, s.err
}

func TestWatcher_ScanOnceIngestsAndRemoves(t *testing.T) {
	st := openStore(t)
	_, err := st.Ingest(context.Background(), []string{codeA})
	require.NoError(t, err)
	outcome, err := st.Redeem(context.Background(), codeA)
	require.NoError(t, err)
	require.Equal(t, "granted", outcome.String())

	root := t.TempDir()
	batch := filepath.Join(root, "usb0", DefaultFilename)
	writeFile(t, batch, "111111111111110\n"+codeA+"\n")

	w := NewWatcher(DefaultWatcherConfig(), st, nil, zerolog.Nop(),
		NewMountSource([]string{root}, DefaultFilename, zerolog.Nop()))

	added := w.ScanOnce(context.Background())
	assert.Equal(t, 1, added)

	_, err = os.Stat(batch)
	assert.True(t, os.IsNotExist(err), "batch should be removed")

	snap := st.Snapshot()
	assert.Equal(t, []string{"111111111111110"}, snap.Valid)
	assert.Equal(t, []string{codeA}, snap.Used)
}

func TestWatcher_GzipBatch(t *testing.T) {
	st := openStore(t)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(codeA + "\n" + codeB + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	root := t.TempDir()
	path := filepath.Join(root, DefaultFilename+".gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	w := NewWatcher(DefaultWatcherConfig(), st, nil, zerolog.Nop(),
		NewMountSource([]string{root}, DefaultFilename, zerolog.Nop()))

	assert.Equal(t, 2, w.ScanOnce(context.Background()))
	assert.Equal(t, []string{codeB, codeA}, st.Snapshot().Valid)
}

func TestWatcher_FirstMatchOnly(t *testing.T) {
	tests := []struct {
		name           string
		firstMatchOnly bool
		wantFirst      int
		wantSecond     int
	}{
		{name: "one batch per cycle", firstMatchOnly: true, wantFirst: 1, wantSecond: 1},
		{name: "all batches per cycle", firstMatchOnly: false, wantFirst: 2, wantSecond: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := openStore(t)
			rootA := t.TempDir()
			rootB := t.TempDir()
			writeFile(t, filepath.Join(rootA, DefaultFilename), codeA+"\n")
			writeFile(t, filepath.Join(rootB, DefaultFilename), codeB+"\n")

			cfg := WatcherConfig{Interval: time.Second, FirstMatchOnly: tt.firstMatchOnly}
			w := NewWatcher(cfg, st, nil, zerolog.Nop(),
				NewMountSource([]string{rootA, rootB}, DefaultFilename, zerolog.Nop()))

			assert.Equal(t, tt.wantFirst, w.ScanOnce(context.Background()))
			assert.Equal(t, tt.wantSecond, w.ScanOnce(context.Background()))
			assert.Len(t, st.Snapshot().Valid, 2)
		})
	}
}

func TestWatcher_FailingBatchDoesNotBlockLaterRoots(t *testing.T) {
	st := openStore(t)
	rootA := t.TempDir()
	rootB := t.TempDir()
	corrupt := filepath.Join(rootA, DefaultFilename+".gz")
	good := filepath.Join(rootB, DefaultFilename)
	writeFile(t, corrupt, "not gzip\n")
	writeFile(t, good, codeA+"\n")

	w := NewWatcher(DefaultWatcherConfig(), st, nil, zerolog.Nop(),
		NewMountSource([]string{rootA, rootB}, DefaultFilename, zerolog.Nop()))

	assert.Equal(t, 1, w.ScanOnce(context.Background()))
	assert.Equal(t, []string{codeA}, st.Snapshot().Valid)
	assert.FileExists(t, corrupt)
	assert.NoFileExists(t, good)

	assert.Equal(t, 0, w.ScanOnce(context.Background()))
	assert.FileExists(t, corrupt)
}

func TestWatcher_FailingSourceBatchFallsThroughToNextSource(t *testing.T) {
	bad := &fakeBatch{location: "bad", openErr: errors.New("i/o error")}
	next := &fakeBatch{location: "next", content: codeB}
	ing := &fakeIngester{}

	w := NewWatcher(DefaultWatcherConfig(), ing, nil, zerolog.Nop(),
		&staticSource{name: "mount", batches: []Batch{bad}},
		&staticSource{name: "s3", batches: []Batch{next}},
	)

	assert.Equal(t, 1, w.ScanOnce(context.Background()))
	assert.False(t, bad.removed)
	assert.True(t, next.removed)
}

func TestWatcher_SourcesVisitedInOrder(t *testing.T) {
	first := &fakeBatch{location: "first", content: codeA}
	second := &fakeBatch{location: "second", content: codeB}

	var got [][]string
	ing := &fakeIngester{ingestFunc: func(ctx context.Context, codes []string) (int, error) {
		got = append(got, codes)
		return len(codes), nil
	}}

	w := NewWatcher(WatcherConfig{FirstMatchOnly: false}, ing, nil, zerolog.Nop(),
		&staticSource{name: "broken", err: errors.New("offline")},
		&staticSource{name: "one", batches: []Batch{first}},
		&staticSource{name: "two", batches: []Batch{second}},
	)

	assert.Equal(t, 2, w.ScanOnce(context.Background()))
	assert.Equal(t, [][]string{{codeA}, {codeB}}, got)
	assert.True(t, first.removed)
	assert.True(t, second.removed)
}

func TestWatcher_IngestFailureLeavesBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ing := &fakeIngester{ingestFunc: func(ctx context.Context, codes []string) (int, error) {
		return 0, errors.New("disk full")
	}}
	b := &fakeBatch{location: "usb", content: codeA + "\n"}

	w := NewWatcher(DefaultWatcherConfig(), ing, m, zerolog.Nop(), &staticSource{name: "mount", batches: []Batch{b}})

	assert.Equal(t, 0, w.ScanOnce(context.Background()))
	assert.False(t, b.removed)
	assert.Equal(t, 1.0, counterValue(t, reg, "kiosk_ingest_batches_total"))

	_, err := w.ProcessBatch(context.Background(), "mount", b, true)
	assert.Error(t, err)
}

func TestWatcher_ReadFailureLeavesBatch(t *testing.T) {
	ing := &fakeIngester{}
	b := &fakeBatch{location: "usb/new_codes.txt.gz", content: "not gzip"}

	w := NewWatcher(DefaultWatcherConfig(), ing, nil, zerolog.Nop())
	_, err := w.ProcessBatch(context.Background(), "mount", b, true)

	assert.Error(t, err)
	assert.False(t, b.removed)
	assert.Equal(t, 0, ing.calls)
}

func TestWatcher_RemoveFailureIsCountedNotReturned(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ing := &fakeIngester{}
	b := &fakeBatch{location: "usb", content: codeA + "\n", removeErr: errors.New("read-only filesystem")}

	w := NewWatcher(DefaultWatcherConfig(), ing, m, zerolog.Nop())
	added, err := w.ProcessBatch(context.Background(), "mount", b, true)

	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1.0, counterValue(t, reg, "kiosk_ingest_remove_errors_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "kiosk_ingested_codes_total"))
}

func TestWatcher_EmptyBatchRemovedWithoutIngest(t *testing.T) {
	ing := &fakeIngester{}
	b := &fakeBatch{location: "usb", content: "\n  \n"}

	w := NewWatcher(DefaultWatcherConfig(), ing, nil, zerolog.Nop())
	added, err := w.ProcessBatch(context.Background(), "mount", b, true)

	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.True(t, b.removed)
	assert.Equal(t, 0, ing.calls)
}

func TestWatcher_ProcessWithoutRemove(t *testing.T) {
	ing := &fakeIngester{}
	b := &fakeBatch{location: "usb", content: codeA}

	w := NewWatcher(DefaultWatcherConfig(), ing, nil, zerolog.Nop())
	added, err := w.ProcessBatch(context.Background(), "cli", b, false)

	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.False(t, b.removed)
}

func TestWatcher_RunScansUntilCancelled(t *testing.T) {
	ing := &fakeIngester{}
	src := &staticSource{name: "mount", batches: []Batch{&fakeBatch{location: "usb", content: codeA}}}

	w := NewWatcher(WatcherConfig{Interval: 10 * time.Millisecond, FirstMatchOnly: true}, ing, nil, zerolog.Nop(), src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		ing.mu.Lock()
		defer ing.mu.Unlock()
		return ing.calls >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
