package capture

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// Snapshot はコントローラーの現在状態
type Snapshot struct {
	SessionID string    `json:"session_id,omitempty"`
	State     State     `json:"state"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Tracks    int       `json:"tracks"`
}

// Change は状態遷移の通知
type Change struct {
	Snapshot
	Previous State
	Stream   StreamHandle // activeの時のみ設定される
}

// Option はControllerの設定関数
type Option func(*Controller)

// WithConstraints は取得制約を設定する
func WithConstraints(constraints Constraints) Option {
	return func(c *Controller) {
		c.constraints = constraints
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithPermissionTracker は取得結果を反映する権限トラッカーを設定する
func WithPermissionTracker(tracker *PermissionTracker) Option {
	return func(c *Controller) {
		c.permissions = tracker
	}
}

// Controller は1台のカメラのキャプチャセッションを管理する状態機械
//
// 各イベント (開始要求、取得完了、停止要求、破棄) はmuの下で不可分に適用され、
// 遷移の通知は発生順に配送される
type Controller struct {
	platform    Platform
	constraints Constraints
	permissions *PermissionTracker
	logger      *slog.Logger

	mu         sync.Mutex
	state      State
	errorKind  ErrorKind
	sessionID  string
	stream     StreamHandle
	generation uint64 // 取得要求の世代。放棄された要求の結果を検出する
	disposed   bool

	listeners    map[uint64]func(Change)
	nextListener uint64

	// notifyMu は通知の配送順序を遷移順に保つ
	notifyMu sync.Mutex

	// 実行中の取得要求
	wg sync.WaitGroup
}

// NewController は新しいControllerを作成する
func NewController(platform Platform, opts ...Option) *Controller {
	c := &Controller{
		platform:    platform,
		constraints: DefaultConstraints(),
		logger:      slog.Default(),
		state:       StateIdle,
		listeners:   make(map[uint64]func(Change)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "capture")
	return c
}

// Start はセッションを開始する
// requesting/activeの間は何もしない。取得の失敗はerror状態として反映され、
// 戻り値になるのは破棄済みの場合のみ
func (c *Controller) Start(ctx context.Context) error {
	// 環境の確認はファイルシステムを見るため、ロックの外で行う
	supported := c.platform.IsSupported()

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}

	switch c.state {
	case StateRequesting, StateActive:
		c.mu.Unlock()
		return nil
	}

	prev := c.state
	c.sessionID = uuid.NewString()
	c.errorKind = ErrorKindNone

	// 取得機能そのものがない場合は要求を出さない
	if !supported {
		c.state = StateError
		c.errorKind = ErrorKindUnsupportedEnvironment
		c.logger.Warn("カメラ取得機能がありません", "session_id", c.sessionID)
		c.commit(prev)
		return nil
	}

	c.generation++
	gen := c.generation
	sessionID := c.sessionID
	c.state = StateRequesting
	c.wg.Add(1)
	c.commit(prev)

	c.logger.Info("カメラを要求しています", "session_id", sessionID,
		"width", c.constraints.Width, "height", c.constraints.Height,
		"facing_mode", c.constraints.FacingMode)

	// 要求は呼び出し元がキャンセルしても完了まで実行する
	go c.acquire(context.WithoutCancel(ctx), gen, sessionID)

	return nil
}

// Stop はセッションを停止する
// activeなら全トラックを停止してstoppedへ遷移する。requesting中なら要求を放棄する
func (c *Controller) Stop() {
	c.mu.Lock()
	prev, ok := c.stopLocked("stop")
	if !ok {
		c.mu.Unlock()
		return
	}
	c.commit(prev)
}

// ClearError はerror状態からidleへ戻す
func (c *Controller) ClearError() {
	c.mu.Lock()
	if c.state != StateError {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.errorKind = ErrorKindNone
	c.sessionID = ""
	c.commit(StateError)
}

// Reset はstopped状態からidleへ戻す
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.state != StateStopped {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.sessionID = ""
	c.commit(StateStopped)
}

// Dispose はコントローラーを破棄する
// どの状態からでもstopと同様にデバイスを解放し、以後の通知を停止する
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true

	if prev, ok := c.stopLocked("dispose"); ok {
		c.commit(prev)
	} else {
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.listeners = make(map[uint64]func(Change))
	c.mu.Unlock()
}

// Wait は実行中の取得要求の完了を待つ
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Snapshot は現在状態を返す
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Current は現在状態と保持中のストリームを返す
func (c *Controller) Current() (Snapshot, StreamHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(), c.stream
}

// Disposed は破棄済みかを返す
func (c *Controller) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// OnChange は状態遷移の通知を登録する。戻り値の関数で解除する
// リスナー内からStart/Stop等を同期的に呼んではならない
func (c *Controller) OnChange(listener func(Change)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextListener
	c.nextListener++
	c.listeners[id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// acquire はデバイスを取得し、結果を現在状態と照合して適用する
func (c *Controller) acquire(ctx context.Context, gen uint64, sessionID string) {
	defer c.wg.Done()

	stream, err := c.request(ctx)
	c.resolve(gen, sessionID, stream, err)
}

// request はプラットフォームへ取得を要求する。パニックは失敗として扱う
func (c *Controller) request(ctx context.Context) (stream StreamHandle, err error) {
	defer func() {
		if r := recover(); r != nil {
			stream = nil
			err = fmt.Errorf("カメラ取得中にパニック: %v", r)
		}
	}()
	return c.platform.RequestCapture(ctx, c.constraints)
}

// resolve は取得結果を適用する
func (c *Controller) resolve(gen uint64, sessionID string, stream StreamHandle, err error) {
	c.mu.Lock()
	if c.disposed || gen != c.generation || c.state != StateRequesting {
		c.mu.Unlock()
		// 放棄された要求の結果は保持せず即座に解放する
		if stream != nil {
			stream.StopAll()
			c.logger.Warn("放棄された要求のストリームを解放しました", "session_id", sessionID)
		} else if err != nil {
			c.logger.Debug("放棄された要求の失敗を破棄しました", "session_id", sessionID, "error", err)
		}
		return
	}

	if err == nil && stream == nil {
		err = fmt.Errorf("プラットフォームがストリームを返しませんでした")
	}

	var observed PermissionStatus
	if err != nil {
		kind := Classify(err)
		c.state = StateError
		c.errorKind = kind
		if kind == ErrorKindPermissionDenied {
			observed = PermissionDenied
		}
		c.logger.Warn("カメラの取得に失敗", "session_id", sessionID,
			"kind", kind, "category", Category(err), "error", err)
	} else {
		c.state = StateActive
		c.stream = stream
		observed = PermissionGranted
		c.logger.Info("カメラを取得しました", "session_id", sessionID,
			"stream_id", stream.ID(), "tracks", len(stream.Tracks()))
	}
	c.commit(StateRequesting)

	if observed != "" && c.permissions != nil {
		c.permissions.Observe(observed)
	}
}

// stopLocked は停止要求を適用し、遷移前の状態を返す (mu保持前提)
func (c *Controller) stopLocked(reason string) (State, bool) {
	switch c.state {
	case StateActive:
		stream := c.stream
		c.stream = nil
		if stream != nil {
			stream.StopAll()
		}
		c.state = StateStopped
		c.logger.Info("カメラを停止しました", "session_id", c.sessionID, "reason", reason)
		return StateActive, true

	case StateRequesting:
		// 取得要求は中断できないため、世代を進めて結果を破棄させる
		c.generation++
		c.state = StateStopped
		c.logger.Info("取得中の要求を放棄しました", "session_id", c.sessionID, "reason", reason)
		return StateRequesting, true
	}

	return c.state, false
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		SessionID: c.sessionID,
		State:     c.state,
		ErrorKind: c.errorKind,
	}
	if c.stream != nil {
		s.Tracks = len(c.stream.Tracks())
	}
	return s
}

// commit は遷移を確定し、muを解放してからリスナーへ通知する (mu保持前提)
func (c *Controller) commit(prev State) {
	change := Change{
		Snapshot: c.snapshotLocked(),
		Previous: prev,
	}
	if c.state == StateActive {
		change.Stream = c.stream
	}

	listeners := make([]func(Change), 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}

	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, l := range listeners {
		c.safeCall(l, change)
	}
}

// safeCall はリスナーを呼び出し、パニックを回復する
func (c *Controller) safeCall(listener func(Change), change Change) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("状態通知のリスナーがパニック",
				"state", change.State, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	listener(change)
}
