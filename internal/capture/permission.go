package capture

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// PermissionTracker はカメラ権限の状態を受動的に監視する
// 状態は助言的なもので、許可/拒否の確定は取得要求の結果で行う
// このコンポーネントが権限プロンプトを発生させることはない
type PermissionTracker struct {
	source PermissionSource // nilなら問い合わせ手段なし
	logger *slog.Logger

	mu          sync.RWMutex
	status      PermissionStatus
	subscribers map[uint64]func(PermissionStatus)
	nextID      uint64
	stopWatch   func()
	closed      bool
}

// NewPermissionTracker は新しいPermissionTrackerを作成する
// platformがPermissionSourceを実装していない場合、状態は常にunknownとなる
func NewPermissionTracker(ctx context.Context, platform Platform, logger *slog.Logger) *PermissionTracker {
	if logger == nil {
		logger = slog.Default()
	}

	t := &PermissionTracker{
		logger:      logger.With("component", "permission"),
		status:      PermissionUnknown,
		subscribers: make(map[uint64]func(PermissionStatus)),
	}

	source, ok := platform.(PermissionSource)
	if !ok {
		return t
	}
	t.source = source

	if status, err := source.QueryPermission(ctx); err == nil {
		t.status = normalizePermission(status)
	} else {
		t.logger.Debug("権限状態の取得に失敗", "error", err)
	}

	stop, err := source.WatchPermission(ctx, t.update)
	if err != nil {
		t.logger.Debug("権限状態の監視を開始できません", "error", err)
		return t
	}
	t.stopWatch = stop

	return t
}

// Query は現在の権限状態を返す
// 問い合わせ手段がない場合や失敗した場合はunknownを返す
func (t *PermissionTracker) Query(ctx context.Context) PermissionStatus {
	if t.source == nil {
		return PermissionUnknown
	}

	status, err := t.source.QueryPermission(ctx)
	if err != nil {
		t.logger.Debug("権限状態の取得に失敗", "error", err)
		return PermissionUnknown
	}

	t.update(status)
	return normalizePermission(status)
}

// Status は最後に観測した権限状態を返す
func (t *PermissionTracker) Status() PermissionStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Subscribe は状態変化の通知を登録する
// 戻り値の関数で登録を解除する。破棄時には必ず解除すること
func (t *PermissionTracker) Subscribe(callback func(PermissionStatus)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return func() {}
	}

	id := t.nextID
	t.nextID++
	t.subscribers[id] = callback

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subscribers, id)
			t.mu.Unlock()
		})
	}
}

// SubscriberCount は登録中の通知数を返す
func (t *PermissionTracker) SubscriberCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subscribers)
}

// Observe は取得要求の結果から得た確定的な権限状態を反映する
func (t *PermissionTracker) Observe(status PermissionStatus) {
	t.update(status)
}

// Close は監視を停止し、全ての登録を解除する
func (t *PermissionTracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	stop := t.stopWatch
	t.stopWatch = nil
	t.subscribers = make(map[uint64]func(PermissionStatus))
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// update は状態を更新し、変化があれば購読者へ通知する
func (t *PermissionTracker) update(status PermissionStatus) {
	status = normalizePermission(status)

	t.mu.Lock()
	if t.closed || t.status == status {
		t.mu.Unlock()
		return
	}
	t.status = status
	callbacks := make([]func(PermissionStatus), 0, len(t.subscribers))
	for _, cb := range t.subscribers {
		callbacks = append(callbacks, cb)
	}
	t.mu.Unlock()

	t.logger.Info("カメラ権限の状態が変化", "status", status)
	for _, cb := range callbacks {
		t.safeCall(cb, status)
	}
}

// safeCall は購読者を呼び出し、パニックを回復する
func (t *PermissionTracker) safeCall(cb func(PermissionStatus), status PermissionStatus) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("権限通知のハンドラーがパニック",
				"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	cb(status)
}

func normalizePermission(status PermissionStatus) PermissionStatus {
	switch status {
	case PermissionPrompt, PermissionGranted, PermissionDenied:
		return status
	default:
		return PermissionUnknown
	}
}
