package workspace

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	calls   atomic.Int32
	err     error
	release chan struct{}
}

func (r *fakeResolver) Resolve(ctx context.Context, dir string) error {
	r.calls.Add(1)
	if r.release != nil {
		<-r.release
	}

	if r.err != nil {
		return r.err
	}

	return os.WriteFile(dir+"/pubspec.lock", []byte("packages: {}\n"), 0o644)
}

type fakeDownloader struct {
	urls []string
	err  error
}

func (d *fakeDownloader) Download(_ context.Context, url, dst string) error {
	d.urls = append(d.urls, url)
	if d.err != nil {
		return d.err
	}

	return os.WriteFile(dst, []byte("summary"), 0o644)
}

func TestInitializeFramework_Success(t *testing.T) {
	resolver := &fakeResolver{}
	downloader := &fakeDownloader{}

	ws, err := New(t.TempDir(),
		WithResolver(resolver),
		WithDownloader(downloader),
		WithSummaryURL("https://example.com/3.5.0/flutter_web.sum"),
	)
	require.NoError(t, err)

	ws.InitializeFramework(context.Background())

	assert.Equal(t, FrameworkReady, ws.State())
	assert.Equal(t, []string{"https://example.com/3.5.0/flutter_web.sum"}, downloader.urls)
	assert.FileExists(t, ws.SummaryFile())

	m, err := readManifest(ws.ManifestFile())
	require.NoError(t, err)
	assert.Contains(t, m.Dependencies, "flutter")

	// Ready is terminal
	ws.InitializeFramework(context.Background())
	assert.Equal(t, int32(1), resolver.calls.Load())
}

func TestInitializeFramework_FailureAllowsRetry(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("pub get failed")}

	ws, err := New(t.TempDir(), WithResolver(resolver), WithDownloader(&fakeDownloader{}))
	require.NoError(t, err)

	ws.InitializeFramework(context.Background())
	assert.Equal(t, FrameworkUninitialized, ws.State())

	resolver.err = nil
	ws.InitializeFramework(context.Background())
	assert.Equal(t, FrameworkReady, ws.State())
	assert.Equal(t, int32(2), resolver.calls.Load())
}

func TestInitializeFramework_DownloadFailure(t *testing.T) {
	ws, err := New(t.TempDir(),
		WithResolver(&fakeResolver{}),
		WithDownloader(&fakeDownloader{err: errors.New("404")}),
		WithSummaryURL("https://example.com/sum"),
	)
	require.NoError(t, err)

	ws.InitializeFramework(context.Background())
	assert.Equal(t, FrameworkUninitialized, ws.State())
}

func TestInitializeFramework_NoResolver(t *testing.T) {
	ws, err := New(t.TempDir())
	require.NoError(t, err)

	ws.InitializeFramework(context.Background())
	assert.Equal(t, FrameworkUninitialized, ws.State())
}

func TestInitializeFramework_ConcurrentCallersWait(t *testing.T) {
	resolver := &fakeResolver{release: make(chan struct{})}

	ws, err := New(t.TempDir(), WithResolver(resolver), WithDownloader(&fakeDownloader{}))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ws.InitializeFramework(context.Background())
	}()

	require.Eventually(t, func() bool {
		return ws.State() == FrameworkInitializing
	}, time.Second, time.Millisecond)

	waiterDone := make(chan struct{})
	go func() {
		ws.InitializeFramework(context.Background())
		close(waiterDone)
	}()

	select {
	case <-waiterDone:
		t.Fatal("waiter returned before the in-flight attempt finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(resolver.release)
	wg.Wait()
	<-waiterDone

	assert.Equal(t, FrameworkReady, ws.State())
	assert.Equal(t, int32(1), resolver.calls.Load())
}

func TestInitializeFramework_WaiterHonoursContext(t *testing.T) {
	resolver := &fakeResolver{release: make(chan struct{})}

	ws, err := New(t.TempDir(), WithResolver(resolver), WithDownloader(&fakeDownloader{}))
	require.NoError(t, err)

	initDone := make(chan struct{})
	go func() {
		ws.InitializeFramework(context.Background())
		close(initDone)
	}()
	defer func() {
		close(resolver.release)
		<-initDone
	}()

	require.Eventually(t, func() bool {
		return ws.State() == FrameworkInitializing
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ws.InitializeFramework(ctx)
	assert.Equal(t, FrameworkInitializing, ws.State())
}

func TestFrameworkState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", FrameworkUninitialized.String())
	assert.Equal(t, "initializing", FrameworkInitializing.String())
	assert.Equal(t, "ready", FrameworkReady.String())
}
