package capture

import (
	"context"
	"errors"
	"testing"
)

func TestPermissionTracker_Unsupported(t *testing.T) {
	ctx := context.Background()
	tracker := NewPermissionTracker(ctx, NewMockPlatform(), nil)
	defer tracker.Close()

	if got := tracker.Query(ctx); got != PermissionUnknown {
		t.Errorf("Expected unknown, got %s", got)
	}
	if got := tracker.Status(); got != PermissionUnknown {
		t.Errorf("Expected unknown status, got %s", got)
	}
}

func TestPermissionTracker_QueryAndSubscribe(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPermissionPlatform(PermissionPrompt)
	tracker := NewPermissionTracker(ctx, platform, nil)
	defer tracker.Close()

	if got := tracker.Query(ctx); got != PermissionPrompt {
		t.Fatalf("Expected prompt, got %s", got)
	}

	var received []PermissionStatus
	unsubscribe := tracker.Subscribe(func(s PermissionStatus) {
		received = append(received, s)
	})

	platform.SetPermission(PermissionGranted)
	platform.SetPermission(PermissionGranted) // 変化なしは通知しない
	platform.SetPermission(PermissionDenied)

	if len(received) != 2 || received[0] != PermissionGranted || received[1] != PermissionDenied {
		t.Errorf("Unexpected notifications: %v", received)
	}

	unsubscribe()
	unsubscribe()
	if tracker.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", tracker.SubscriberCount())
	}

	platform.SetPermission(PermissionPrompt)
	if len(received) != 2 {
		t.Error("Unsubscribed callback must not be called")
	}

	// 権限の問い合わせはデバイスを要求しない
	if platform.Requests() != 0 {
		t.Errorf("Expected no capture requests, got %d", platform.Requests())
	}
}

func TestPermissionTracker_QueryError(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPermissionPlatform(PermissionGranted)
	tracker := NewPermissionTracker(ctx, platform, nil)
	defer tracker.Close()

	platform.SetQueryError(errors.New("introspection failed"))
	if got := tracker.Query(ctx); got != PermissionUnknown {
		t.Errorf("Expected unknown on query error, got %s", got)
	}
}

func TestPermissionTracker_Close(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPermissionPlatform(PermissionPrompt)
	tracker := NewPermissionTracker(ctx, platform, nil)

	if platform.WatcherCount() != 1 {
		t.Fatalf("Expected 1 watcher, got %d", platform.WatcherCount())
	}

	called := false
	tracker.Subscribe(func(PermissionStatus) { called = true })
	tracker.Close()
	tracker.Close()

	if platform.WatcherCount() != 0 {
		t.Errorf("Expected watcher to be stopped, got %d", platform.WatcherCount())
	}
	platform.SetPermission(PermissionGranted)
	if called {
		t.Error("Callback must not be called after close")
	}

	// 破棄後の登録は何もしない
	tracker.Subscribe(func(PermissionStatus) {})
	if tracker.SubscriberCount() != 0 {
		t.Error("Subscribe after close must not register")
	}
}

func TestPermissionTracker_SubscriberPanicRecovered(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPermissionPlatform(PermissionPrompt)
	tracker := NewPermissionTracker(ctx, platform, nil)
	defer tracker.Close()

	got := PermissionUnknown
	tracker.Subscribe(func(PermissionStatus) { panic("boom") })
	tracker.Subscribe(func(s PermissionStatus) { got = s })

	platform.SetPermission(PermissionDenied)
	if got != PermissionDenied {
		t.Errorf("Expected remaining subscriber to be notified, got %s", got)
	}
}
