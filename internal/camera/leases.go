package camera

import (
	"sync"
	"syscall"

	"signbridge/internal/capture"
)

// Leases は物理デバイスの排他的な貸し出しを管理する
type Leases struct {
	mu      sync.Mutex
	holders map[string]string // デバイスパス -> ストリームID
}

// NewLeases は新しいLeasesを作成する
func NewLeases() *Leases {
	return &Leases{holders: make(map[string]string)}
}

// Acquire はデバイスを貸し出す。既に貸し出し中ならNotReadableErrorを返す
func (l *Leases) Acquire(device, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current, busy := l.holders[device]; busy && current != holder {
		return capture.NewPlatformError("NotReadableError",
			"デバイスは別のストリームが使用中です: "+device, syscall.EBUSY)
	}
	l.holders[device] = holder
	return nil
}

// Release はデバイスを返却する。保持者が異なる場合は何もしない
func (l *Leases) Release(device, holder string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.holders[device] == holder {
		delete(l.holders, device)
	}
}

// Holder はデバイスの保持者を返す
func (l *Leases) Holder(device string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	holder, ok := l.holders[device]
	return holder, ok
}

// Count は貸し出し中のデバイス数を返す
func (l *Leases) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.holders)
}
