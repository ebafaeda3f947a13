package camera

import (
	"testing"

	"signbridge/internal/capture"
)

func TestLeases(t *testing.T) {
	leases := NewLeases()

	if err := leases.Acquire("/dev/video0", "a"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	// 同じ保持者は再取得できる
	if err := leases.Acquire("/dev/video0", "a"); err != nil {
		t.Fatalf("Re-acquire by holder failed: %v", err)
	}

	err := leases.Acquire("/dev/video0", "b")
	if capture.Classify(err) != capture.ErrorKindDeviceInUse {
		t.Errorf("Expected device_in_use, got %v", err)
	}

	// 別の保持者による返却は無視する
	leases.Release("/dev/video0", "b")
	if holder, ok := leases.Holder("/dev/video0"); !ok || holder != "a" {
		t.Errorf("Expected holder a, got %q", holder)
	}

	leases.Release("/dev/video0", "a")
	if leases.Count() != 0 {
		t.Errorf("Expected no leases, got %d", leases.Count())
	}
	if err := leases.Acquire("/dev/video0", "b"); err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
}
