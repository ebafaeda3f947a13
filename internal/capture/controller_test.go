package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// waitForState は状態が期待値になるまで待つ
func waitForState(t *testing.T, c *Controller, want State) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := c.Snapshot()
		if s.State == want {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected state %s, got %s", want, s.State)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestController_StartStop(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform()
	c := NewController(platform)
	defer c.Dispose()

	if s := c.Snapshot(); s.State != StateIdle {
		t.Fatalf("Expected initial state idle, got %s", s.State)
	}

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s := waitForState(t, c, StateActive)
	if s.SessionID == "" {
		t.Error("Expected session ID to be set")
	}
	if s.Tracks != 1 {
		t.Errorf("Expected 1 track, got %d", s.Tracks)
	}

	streams := platform.Streams()
	if len(streams) != 1 {
		t.Fatalf("Expected 1 stream, got %d", len(streams))
	}
	got := streams[0].Constraints()
	if got.Width != 1280 || got.Height != 720 || got.FacingMode != FacingUser || got.Audio {
		t.Errorf("Unexpected constraints: %+v", got)
	}

	c.Stop()
	s = c.Snapshot()
	if s.State != StateStopped {
		t.Fatalf("Expected stopped, got %s", s.State)
	}
	if len(streams[0].Tracks()) != 0 {
		t.Errorf("Expected zero held tracks after stop, got %d", len(streams[0].Tracks()))
	}
	if streams[0].StopCalls() != 1 {
		t.Errorf("Expected StopAll once, got %d", streams[0].StopCalls())
	}
	if _, stream := c.Current(); stream != nil {
		t.Error("Expected stream handle to be cleared")
	}
}

func TestController_StartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform()
	platform.SetBlocking(true)
	c := NewController(platform)
	defer c.Dispose()

	// requesting中の同時重複呼び出し
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Start(ctx)
		}()
	}
	wg.Wait()

	if s := c.Snapshot(); s.State != StateRequesting {
		t.Fatalf("Expected requesting, got %s", s.State)
	}

	platform.Release()
	waitForState(t, c, StateActive)

	// active中の呼び出し
	for i := 0; i < 5; i++ {
		_ = c.Start(ctx)
	}
	c.Wait()

	if platform.Requests() != 1 {
		t.Errorf("Expected exactly 1 acquisition, got %d", platform.Requests())
	}
}

func TestController_Restartable(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform()
	c := NewController(platform)
	defer c.Dispose()

	_ = c.Start(ctx)
	first := waitForState(t, c, StateActive)
	c.Stop()

	_ = c.Start(ctx)
	second := waitForState(t, c, StateActive)

	if first.SessionID == second.SessionID {
		t.Error("Expected a new session ID after restart")
	}
	if platform.Requests() != 2 {
		t.Errorf("Expected 2 acquisitions, got %d", platform.Requests())
	}

	streams := platform.Streams()
	if len(streams[0].Tracks()) != 0 {
		t.Error("Expected first stream to be released")
	}
	if len(streams[1].Tracks()) != 1 {
		t.Error("Expected second stream to be held")
	}
}

func TestController_ResetFromStopped(t *testing.T) {
	ctx := context.Background()
	c := NewController(NewMockPlatform())
	defer c.Dispose()

	c.Reset() // idleでは何もしない
	if s := c.Snapshot(); s.State != StateIdle {
		t.Fatalf("Expected idle, got %s", s.State)
	}

	_ = c.Start(ctx)
	waitForState(t, c, StateActive)
	c.Stop()
	c.Reset()

	s := c.Snapshot()
	if s.State != StateIdle || s.SessionID != "" {
		t.Errorf("Expected idle without session, got %+v", s)
	}
}

func TestController_PermissionDeniedThenRetry(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPermissionPlatform(PermissionDenied)
	platform.SetFailure(NewPlatformError("NotAllowedError", "Permission denied", nil))
	tracker := NewPermissionTracker(ctx, platform, nil)
	defer tracker.Close()

	c := NewController(platform, WithPermissionTracker(tracker))
	defer c.Dispose()

	_ = c.Start(ctx)
	s := waitForState(t, c, StateError)
	if s.ErrorKind != ErrorKindPermissionDenied {
		t.Fatalf("Expected permission_denied, got %q", s.ErrorKind)
	}

	// error中のstopは何もしない
	c.Stop()
	if c.Snapshot().State != StateError {
		t.Fatal("Stop should not leave the error state")
	}

	c.ClearError()
	s = c.Snapshot()
	if s.State != StateIdle || s.ErrorKind != ErrorKindNone {
		t.Fatalf("Expected idle without error, got %+v", s)
	}

	// 永続的なロックアウトはない
	platform.SetFailure(nil)
	_ = c.Start(ctx)
	waitForState(t, c, StateActive)
	c.Wait()
	if platform.Requests() != 2 {
		t.Errorf("Expected 2 acquisitions, got %d", platform.Requests())
	}
	if tracker.Status() != PermissionGranted {
		t.Errorf("Expected tracker to observe granted, got %s", tracker.Status())
	}
}

func TestController_StartFromErrorClearsError(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform()
	platform.SetFailure(NewPlatformError("NotReadableError", "busy", nil))
	platform.SetBlocking(true)
	c := NewController(platform)
	defer c.Dispose()

	_ = c.Start(ctx)
	platform.Release()
	waitForState(t, c, StateError)

	_ = c.Start(ctx)
	s := c.Snapshot()
	if s.State != StateRequesting || s.ErrorKind != ErrorKindNone {
		t.Fatalf("Expected requesting without error, got %+v", s)
	}
	platform.Release()
	s = waitForState(t, c, StateError)
	if s.ErrorKind != ErrorKindDeviceInUse {
		t.Errorf("Expected device_in_use, got %q", s.ErrorKind)
	}
}

func TestController_UnknownCategory(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform()
	platform.SetFailure(NewPlatformError("WeirdVendorError", "???", nil))
	c := NewController(platform)
	defer c.Dispose()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start must not return acquisition failures: %v", err)
	}
	s := waitForState(t, c, StateError)
	if s.ErrorKind != ErrorKindUnknown {
		t.Errorf("Expected unknown, got %q", s.ErrorKind)
	}
}

func TestController_PlatformPanic(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform()
	platform.SetPanic("driver exploded")
	c := NewController(platform)
	defer c.Dispose()

	_ = c.Start(ctx)
	s := waitForState(t, c, StateError)
	if s.ErrorKind != ErrorKindUnknown {
		t.Errorf("Expected unknown, got %q", s.ErrorKind)
	}
}

func TestController_UnsupportedEnvironment(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform()
	platform.SetSupported(false)
	c := NewController(platform)
	defer c.Dispose()

	_ = c.Start(ctx)
	s := c.Snapshot()
	if s.State != StateError || s.ErrorKind != ErrorKindUnsupportedEnvironment {
		t.Fatalf("Expected error(unsupported_environment), got %+v", s)
	}
	if platform.Requests() != 0 {
		t.Errorf("Expected no acquisition attempt, got %d", platform.Requests())
	}
}

// slowSupportPlatform はIsSupportedがreleaseされるまで戻らない
type slowSupportPlatform struct {
	*MockPlatform
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *slowSupportPlatform) IsSupported() bool {
	p.once.Do(func() { close(p.entered) })
	<-p.release
	return p.MockPlatform.IsSupported()
}

func TestController_SupportCheckDoesNotBlockReaders(t *testing.T) {
	ctx := context.Background()
	platform := &slowSupportPlatform{
		MockPlatform: NewMockPlatform(),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	c := NewController(platform)
	defer c.Dispose()

	go func() { _ = c.Start(ctx) }()
	<-platform.entered

	// 環境確認の間もSnapshotとStopは待たされない
	done := make(chan struct{})
	go func() {
		_ = c.Snapshot()
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		close(platform.release)
		t.Fatal("Snapshot/Stop blocked behind the support check")
	}

	close(platform.release)
	waitForState(t, c, StateActive)
}

func TestController_LateSuccessAfterStop(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform()
	platform.SetBlocking(true)
	c := NewController(platform)
	defer c.Dispose()

	_ = c.Start(ctx)
	if c.Snapshot().State != StateRequesting {
		t.Fatal("Expected requesting")
	}

	c.Stop()
	if s := c.Snapshot(); s.State != StateStopped {
		t.Fatalf("Expected stopped after abandoning, got %s", s.State)
	}

	// 要求が遅れて成功する
	platform.Release()
	c.Wait()

	s, stream := c.Current()
	if s.State != StateStopped {
		t.Fatalf("Late success must not resurrect the session, got %s", s.State)
	}
	if stream != nil {
		t.Error("Expected no stream to be held")
	}

	streams := platform.Streams()
	if len(streams) != 1 {
		t.Fatalf("Expected 1 stream, got %d", len(streams))
	}
	if len(streams[0].Tracks()) != 0 {
		t.Error("Expected late stream to be released immediately")
	}
	if streams[0].StopCalls() != 1 {
		t.Errorf("Expected StopAll once, got %d", streams[0].StopCalls())
	}
}

func TestController_LateResultAfterRestart(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform()
	platform.SetBlocking(true)
	c := NewController(platform)
	defer c.Dispose()

	_ = c.Start(ctx) // 1回目 (放棄される)
	c.Stop()
	_ = c.Start(ctx) // 2回目

	platform.Release()
	platform.Release()
	c.Wait()

	s, stream := c.Current()
	if s.State != StateActive || stream == nil {
		t.Fatalf("Expected active with stream, got %+v", s)
	}

	held := 0
	for _, st := range platform.Streams() {
		held += len(st.Tracks())
	}
	if held != 1 {
		t.Errorf("Expected exactly 1 held track, got %d", held)
	}
}

func TestController_DisposeFromAnyState(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name  string
		setup func(t *testing.T, p *MockPlatform, c *Controller)
	}{
		{
			name: "active",
			setup: func(t *testing.T, p *MockPlatform, c *Controller) {
				_ = c.Start(ctx)
				waitForState(t, c, StateActive)
			},
		},
		{
			name: "requesting",
			setup: func(t *testing.T, p *MockPlatform, c *Controller) {
				p.SetBlocking(true)
				_ = c.Start(ctx)
			},
		},
		{
			name: "error",
			setup: func(t *testing.T, p *MockPlatform, c *Controller) {
				p.SetFailure(NewPlatformError("NotFoundError", "", nil))
				_ = c.Start(ctx)
				waitForState(t, c, StateError)
			},
		},
		{
			name:  "idle",
			setup: func(t *testing.T, p *MockPlatform, c *Controller) {},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			platform := NewMockPlatform()
			c := NewController(platform)
			tc.setup(t, platform, c)

			c.Dispose()
			platform.Release()
			c.Wait()

			for _, st := range platform.Streams() {
				if n := len(st.Tracks()); n != 0 {
					t.Errorf("Expected zero held tracks after dispose, got %d", n)
				}
			}
			if _, stream := c.Current(); stream != nil {
				t.Error("Expected no stream after dispose")
			}
			if err := c.Start(ctx); !errors.Is(err, ErrDisposed) {
				t.Errorf("Expected ErrDisposed, got %v", err)
			}
		})
	}
}

func TestController_ChangeNotifications(t *testing.T) {
	ctx := context.Background()
	c := NewController(NewMockPlatform())
	defer c.Dispose()

	var mu sync.Mutex
	var states []State
	unsubscribe := c.OnChange(func(ch Change) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, ch.State)
		if ch.State == StateActive && ch.Stream == nil {
			t.Error("Expected stream on active change")
		}
	})

	_ = c.Start(ctx)
	waitForState(t, c, StateActive)
	c.Stop()
	unsubscribe()
	c.Reset()

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateRequesting, StateActive, StateStopped}
	if len(states) != len(want) {
		t.Fatalf("Expected %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("Change %d: expected %s, got %s", i, want[i], states[i])
		}
	}
}

func TestController_ListenerPanicRecovered(t *testing.T) {
	ctx := context.Background()
	c := NewController(NewMockPlatform())
	defer c.Dispose()

	c.OnChange(func(Change) { panic("boom") })

	_ = c.Start(ctx)
	waitForState(t, c, StateActive)
}
