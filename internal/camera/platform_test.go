package camera

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"signbridge/internal/capture"
)

// fakeStreamer はffmpegの代わりにフレームを生成する
type fakeStreamer struct {
	mu      sync.Mutex
	mode    string // "frames", "fail", "hang", "die"
	started []string
	running int
}

func (s *fakeStreamer) Stream(ctx context.Context, device string, _ capture.Constraints, frames chan<- []byte) error {
	s.mu.Lock()
	mode := s.mode
	s.started = append(s.started, device)
	s.running++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running--
		s.mu.Unlock()
	}()

	switch mode {
	case "fail":
		return errors.New("デバイスを開けませんでした")
	case "hang":
		<-ctx.Done()
		return nil
	case "die":
		// 最初のフレームだけ送って異常終了する
		select {
		case frames <- jpeg(device):
		case <-ctx.Done():
			return nil
		}
		// 最初のフレームが受け取られてから終了する
		for len(frames) > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Millisecond):
			}
		}
		return errors.New("ffmpegが異常終了しました")
	}

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			select {
			case frames <- jpeg(device):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (s *fakeStreamer) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *fakeStreamer) Started() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.started...)
}

func newTestPlatform(streamer *fakeStreamer, devices ...string) (*Platform, *MockDiscovery) {
	discovery := NewMockDiscovery(devices)
	p := NewPlatform(
		WithDiscovery(discovery),
		WithStreamer(streamer),
		WithStartTimeout(200*time.Millisecond),
	)
	return p, discovery
}

func TestPlatform_RequestCapture(t *testing.T) {
	streamer := &fakeStreamer{mode: "frames"}
	p, _ := newTestPlatform(streamer, "/dev/video0")

	stream, err := p.RequestCapture(context.Background(), capture.DefaultConstraints())
	if err != nil {
		t.Fatalf("RequestCapture failed: %v", err)
	}

	tracks := stream.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("Expected 1 track, got %d", len(tracks))
	}
	if tracks[0].Kind() != "video" {
		t.Errorf("Expected video track, got %s", tracks[0].Kind())
	}
	if tracks[0].Label() != "テストカメラ 1" {
		t.Errorf("Expected device name as label, got %s", tracks[0].Label())
	}
	if holder, ok := p.Leases().Holder("/dev/video0"); !ok || holder != stream.ID() {
		t.Errorf("Expected lease held by %s, got %q", stream.ID(), holder)
	}

	// フレームが配信される
	source, ok := tracks[0].(capture.FrameSource)
	if !ok {
		t.Fatal("Expected track to be a FrameSource")
	}
	frames, unsubscribe := source.Subscribe()
	select {
	case frame := <-frames:
		if len(frame) == 0 {
			t.Error("Expected non-empty frame")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for frame")
	}
	unsubscribe()

	stream.StopAll()
	stream.StopAll()

	if len(stream.Tracks()) != 0 {
		t.Error("Expected no live tracks after StopAll")
	}
	if p.Leases().Count() != 0 {
		t.Error("Expected lease to be released")
	}
	if streamer.Running() != 0 {
		t.Errorf("Expected streamer to stop, %d running", streamer.Running())
	}

	// 停止後の購読は閉じたチャンネルを返す
	frames, _ = source.Subscribe()
	if _, ok := <-frames; ok {
		t.Error("Expected closed channel after stop")
	}
}

func TestPlatform_StreamEndsWhenFFmpegDies(t *testing.T) {
	streamer := &fakeStreamer{mode: "die"}
	p, _ := newTestPlatform(streamer, "/dev/video0")

	stream, err := p.RequestCapture(context.Background(), capture.DefaultConstraints())
	if err != nil {
		t.Fatalf("RequestCapture failed: %v", err)
	}

	source, ok := stream.Tracks()[0].(capture.FrameSource)
	if !ok {
		t.Fatal("Expected track to be a FrameSource")
	}
	frames, unsubscribe := source.Subscribe()
	defer unsubscribe()

	// 購読者のチャンネルは閉じられる
	timeout := time.After(time.Second)
	for closed := false; !closed; {
		select {
		case _, ok := <-frames:
			closed = !ok
		case <-timeout:
			t.Fatal("Subscriber was never closed after ffmpeg exited")
		}
	}

	deadline := time.Now().Add(time.Second)
	for len(stream.Tracks()) != 0 || p.Leases().Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected track ended and lease released: tracks=%d leases=%d",
				len(stream.Tracks()), p.Leases().Count())
		}
		time.Sleep(5 * time.Millisecond)
	}

	// デバイスは再取得できる
	streamer.mu.Lock()
	streamer.mode = "frames"
	streamer.mu.Unlock()
	next, err := p.RequestCapture(context.Background(), capture.DefaultConstraints())
	if err != nil {
		t.Fatalf("Expected device to be reusable, got %v", err)
	}
	next.StopAll()

	// 終了後のStopも安全に呼べる
	stream.StopAll()
	if streamer.Running() != 0 {
		t.Errorf("Expected streamer to stop, %d running", streamer.Running())
	}
}

func TestPlatform_RequestCaptureFailures(t *testing.T) {
	testCases := []struct {
		name    string
		mode    string
		devices []string
		setup   func(p *Platform, d *MockDiscovery)
		c       func() capture.Constraints
		want    capture.ErrorKind
	}{
		{
			name: "デバイスなし",
			mode: "frames",
			want: capture.ErrorKindNoDeviceFound,
		},
		{
			name:    "指定デバイスが存在しない",
			mode:    "frames",
			devices: []string{"/dev/video0"},
			c: func() capture.Constraints {
				c := capture.DefaultConstraints()
				c.Device = "/dev/video9"
				return c
			},
			want: capture.ErrorKindNoDeviceFound,
		},
		{
			name:    "権限なし",
			mode:    "frames",
			devices: []string{"/dev/video0"},
			setup: func(_ *Platform, d *MockDiscovery) {
				d.SetOpenError("/dev/video0", &pathErr{err: syscall.EACCES})
			},
			want: capture.ErrorKindPermissionDenied,
		},
		{
			name:    "他のストリームが使用中",
			mode:    "frames",
			devices: []string{"/dev/video0"},
			setup: func(p *Platform, _ *MockDiscovery) {
				_ = p.Leases().Acquire("/dev/video0", "other")
			},
			want: capture.ErrorKindDeviceInUse,
		},
		{
			name:    "ffmpegが最初のフレーム前に失敗",
			mode:    "fail",
			devices: []string{"/dev/video0"},
			want:    capture.ErrorKindDeviceInUse,
		},
		{
			name:    "最初のフレームがタイムアウト",
			mode:    "hang",
			devices: []string{"/dev/video0"},
			want:    capture.ErrorKindDeviceInUse,
		},
		{
			name:    "音声は非対応",
			mode:    "frames",
			devices: []string{"/dev/video0"},
			c: func() capture.Constraints {
				c := capture.DefaultConstraints()
				c.Audio = true
				return c
			},
			want: capture.ErrorKindUnknown,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			streamer := &fakeStreamer{mode: tc.mode}
			p, d := newTestPlatform(streamer, tc.devices...)
			if tc.setup != nil {
				tc.setup(p, d)
			}
			constraints := capture.DefaultConstraints()
			if tc.c != nil {
				constraints = tc.c()
			}

			stream, err := p.RequestCapture(context.Background(), constraints)
			if err == nil {
				stream.StopAll()
				t.Fatal("Expected error")
			}
			if got := capture.Classify(err); got != tc.want {
				t.Errorf("Expected %s, got %s (%v)", tc.want, got, err)
			}
			if streamer.Running() != 0 {
				t.Errorf("Expected no running streamer, got %d", streamer.Running())
			}
			if holder, ok := p.Leases().Holder("/dev/video0"); ok && holder != "other" {
				t.Errorf("Expected lease to be released, held by %s", holder)
			}
		})
	}
}

type pathErr struct{ err error }

func (e *pathErr) Error() string { return "open: " + e.err.Error() }
func (e *pathErr) Unwrap() error { return e.err }

func TestPlatform_RequestCaptureCanceled(t *testing.T) {
	streamer := &fakeStreamer{mode: "hang"}
	p, _ := newTestPlatform(streamer, "/dev/video0")
	p.startTimeout = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.RequestCapture(ctx, capture.DefaultConstraints())
	if capture.Category(err) != "AbortError" {
		t.Errorf("Expected AbortError, got %v", err)
	}
	if p.Leases().Count() != 0 {
		t.Error("Expected lease to be released")
	}
}

func TestPlatform_FacingMode(t *testing.T) {
	streamer := &fakeStreamer{mode: "frames"}
	p, _ := newTestPlatform(streamer, "/dev/video0", "/dev/video2")

	constraints := capture.DefaultConstraints()
	constraints.FacingMode = capture.FacingEnvironment

	stream, err := p.RequestCapture(context.Background(), constraints)
	if err != nil {
		t.Fatalf("RequestCapture failed: %v", err)
	}
	defer stream.StopAll()

	started := streamer.Started()
	if len(started) != 1 || started[0] != "/dev/video2" {
		t.Errorf("Expected /dev/video2, got %v", started)
	}
}

func TestPlatform_SharedLeases(t *testing.T) {
	leases := NewLeases()
	discovery := NewMockDiscovery([]string{"/dev/video0"})
	newPlatform := func() *Platform {
		return NewPlatform(
			WithDiscovery(discovery),
			WithStreamer(&fakeStreamer{mode: "frames"}),
			WithLeases(leases),
			WithStartTimeout(200*time.Millisecond),
		)
	}
	a, b := newPlatform(), newPlatform()

	stream, err := a.RequestCapture(context.Background(), capture.DefaultConstraints())
	if err != nil {
		t.Fatalf("RequestCapture failed: %v", err)
	}

	_, err = b.RequestCapture(context.Background(), capture.DefaultConstraints())
	if capture.Classify(err) != capture.ErrorKindDeviceInUse {
		t.Errorf("Expected device_in_use, got %v", err)
	}

	stream.StopAll()

	stream, err = b.RequestCapture(context.Background(), capture.DefaultConstraints())
	if err != nil {
		t.Fatalf("RequestCapture after release failed: %v", err)
	}
	stream.StopAll()
}

func TestPlatform_IsSupported(t *testing.T) {
	dir := t.TempDir()
	found := func(string) (string, error) { return "/usr/bin/ffmpeg", nil }
	missing := func(string) (string, error) { return "", errors.New("not found") }

	testCases := []struct {
		name     string
		lookPath func(string) (string, error)
		sysfsDir string
		want     bool
	}{
		{"ffmpegとsysfsあり", found, dir, true},
		{"ffmpegなし", missing, dir, false},
		{"sysfsなし", found, filepath.Join(dir, "missing"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPlatform(WithDiscovery(NewMockDiscovery(nil)), WithSysfsDir(tc.sysfsDir))
			p.lookPath = tc.lookPath
			if got := p.IsSupported(); got != tc.want {
				t.Errorf("IsSupported() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOpenError(t *testing.T) {
	testCases := []struct {
		err  error
		want string
	}{
		{syscall.EACCES, "NotAllowedError"},
		{syscall.EPERM, "NotAllowedError"},
		{syscall.ENOENT, "NotFoundError"},
		{syscall.ENODEV, "NotFoundError"},
		{syscall.EBUSY, "NotReadableError"},
		{syscall.EIO, "AbortError"},
		{errors.New("unknown"), "AbortError"},
	}

	for _, tc := range testCases {
		if got := capture.Category(openError("/dev/video0", tc.err)); got != tc.want {
			t.Errorf("openError(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
