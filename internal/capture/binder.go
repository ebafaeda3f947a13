package capture

import (
	"log/slog"
	"sync"
)

// Surface はストリームを表示する描画先
// マウント/アンマウントはセッションのライフサイクルとは独立している
type Surface interface {
	ID() string

	// Attach はストリームを結合する
	Attach(stream StreamHandle) error

	// Detach はストリームの結合を解除する。ストリーム自体は停止しない
	Detach()

	// Play は再生を要求する。ブロックしてはならない
	Play() error
}

// Binding はサーフェスとセッションの結合状態
type Binding struct {
	SurfaceID string `json:"surface_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Attached  bool   `json:"attached"`
}

// bindingKey はセッションとサーフェスの組
type bindingKey struct {
	sessionID string
	surfaceID string
}

// BinderOption はStreamBinderの設定関数
type BinderOption func(*StreamBinder)

// WithBinderLogger はロガーを設定する
func WithBinderLogger(logger *slog.Logger) BinderOption {
	return func(b *StreamBinder) {
		b.logger = logger
	}
}

// WithPlaybackErrorHandler は再生失敗の通知先を設定する
func WithPlaybackErrorHandler(handler func(surfaceID string, kind ErrorKind, err error)) BinderOption {
	return func(b *StreamBinder) {
		b.onPlaybackError = handler
	}
}

// StreamBinder はactiveなセッションのストリームを、マウント中のサーフェスへ結合する
//
// 「ストリームの準備完了」と「サーフェスのマウント」は独立したイベントとして届き、
// どちらが先でも組ごとにちょうど1回だけ結合する
type StreamBinder struct {
	logger          *slog.Logger
	onPlaybackError func(surfaceID string, kind ErrorKind, err error)

	mu        sync.Mutex
	surface   Surface      // 最後にマウントされたサーフェス
	sessionID string       // activeなセッション
	stream    StreamHandle // activeなセッションのストリーム
	attached  map[bindingKey]struct{}
	current   *bindingKey // 結合中の組

	unsubscribe func()
}

// NewStreamBinder はcontrollerの状態遷移を購読するStreamBinderを作成する
func NewStreamBinder(controller *Controller, opts ...BinderOption) *StreamBinder {
	b := &StreamBinder{
		logger:   slog.Default(),
		attached: make(map[bindingKey]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "binder")

	b.unsubscribe = controller.OnChange(b.handleChange)

	// 購読前にactiveになっていた場合に備える
	snapshot, stream := controller.Current()
	if snapshot.State == StateActive && stream != nil {
		b.OnSessionActive(snapshot.SessionID, stream)
	}

	return b
}

// Bind はサーフェスのマウントを通知する
// セッションがactiveなら即座に結合し、そうでなければactiveになった時点で結合する
//
// 結合は(セッション, サーフェス)の組ごとに1回だけ行う。同じセッション中に
// 一度外れたサーフェスを再びBindしても結合し直さず、Bindingは
// Attached=falseのままになる。再マウントには新しいIDのサーフェスを使う
func (b *StreamBinder) Bind(surface Surface) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface != nil && b.surface.ID() != surface.ID() {
		// 結合先は常に最新のサーフェス
		b.detachLocked()
	}
	b.surface = surface

	if b.stream != nil {
		b.attachLocked()
	}
}

// Unbind はサーフェスのアンマウントを通知する
// セッションのストリームは停止しない
func (b *StreamBinder) Unbind(surface Surface) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil || b.surface.ID() != surface.ID() {
		return
	}
	b.detachLocked()
	b.surface = nil
}

// OnSessionActive はセッションがactiveになったことを通知する
// 待機中のサーフェスがあれば結合する
func (b *StreamBinder) OnSessionActive(sessionID string, stream StreamHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sessionID == sessionID && b.stream != nil {
		return
	}
	if b.sessionID != sessionID {
		b.detachLocked()
		b.attached = make(map[bindingKey]struct{})
	}
	b.sessionID = sessionID
	b.stream = stream

	if b.surface != nil {
		b.attachLocked()
	}
}

// Binding は現在の結合状態を返す
func (b *StreamBinder) Binding() Binding {
	b.mu.Lock()
	defer b.mu.Unlock()

	var binding Binding
	if b.surface != nil {
		binding.SurfaceID = b.surface.ID()
	}
	if b.current != nil {
		binding.SessionID = b.current.sessionID
		binding.Attached = true
	}
	return binding
}

// Close は購読を解除し、結合を解除する
func (b *StreamBinder) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.detachLocked()
	b.surface = nil
	b.sessionID = ""
	b.stream = nil
}

// handleChange はコントローラーの状態遷移を反映する
func (b *StreamBinder) handleChange(change Change) {
	if change.State == StateActive && change.Stream != nil {
		b.OnSessionActive(change.SessionID, change.Stream)
		return
	}

	// activeでなくなったセッションの結合は解除し、サーフェスは次のセッションを待つ
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detachLocked()
	b.sessionID = ""
	b.stream = nil
}

// attachLocked はサーフェスとストリームを結合し、再生を要求する (mu保持前提)
func (b *StreamBinder) attachLocked() {
	key := bindingKey{sessionID: b.sessionID, surfaceID: b.surface.ID()}
	if _, done := b.attached[key]; done {
		return
	}
	b.attached[key] = struct{}{}

	if err := b.surface.Attach(b.stream); err != nil {
		b.reportPlaybackError(key.surfaceID, err)
		return
	}
	b.current = &key
	b.logger.Info("サーフェスにストリームを結合しました",
		"session_id", key.sessionID, "surface_id", key.surfaceID)

	// 再生の失敗はデバイス取得の失敗ではないため、セッションはactiveのまま
	if err := b.surface.Play(); err != nil {
		b.reportPlaybackError(key.surfaceID, err)
	}
}

// detachLocked は結合中の組を解除する (mu保持前提)
func (b *StreamBinder) detachLocked() {
	if b.current == nil {
		return
	}
	if b.surface != nil && b.surface.ID() == b.current.surfaceID {
		b.surface.Detach()
	}
	b.logger.Info("サーフェスの結合を解除しました",
		"session_id", b.current.sessionID, "surface_id", b.current.surfaceID)
	b.current = nil
}

func (b *StreamBinder) reportPlaybackError(surfaceID string, err error) {
	b.logger.Warn("再生に失敗", "surface_id", surfaceID,
		"kind", ErrorKindUnknown, "error", err)
	if b.onPlaybackError != nil {
		b.onPlaybackError(surfaceID, ErrorKindUnknown, err)
	}
}
