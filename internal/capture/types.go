package capture

import (
	"context"
	"errors"
	"fmt"
)

// State はキャプチャセッションの状態を表す
type State string

const (
	StateIdle       State = "idle"       // 初期状態、再開可能
	StateRequesting State = "requesting" // デバイス取得中
	StateActive     State = "active"     // ストリーム保持中
	StateStopped    State = "stopped"    // 停止済み
	StateError      State = "error"      // 取得失敗
)

// ErrorKind はデバイス取得失敗の分類
type ErrorKind string

const (
	ErrorKindNone                   ErrorKind = ""
	ErrorKindPermissionDenied       ErrorKind = "permission_denied"
	ErrorKindNoDeviceFound          ErrorKind = "no_device_found"
	ErrorKindDeviceInUse            ErrorKind = "device_in_use"
	ErrorKindUnsupportedEnvironment ErrorKind = "unsupported_environment"
	ErrorKindUnknown                ErrorKind = "unknown"
)

// ErrorKinds は分類の全集合を返す
func ErrorKinds() []ErrorKind {
	return []ErrorKind{
		ErrorKindPermissionDenied,
		ErrorKindNoDeviceFound,
		ErrorKindDeviceInUse,
		ErrorKindUnsupportedEnvironment,
		ErrorKindUnknown,
	}
}

// Retryable はユーザー操作後の start で回復しうる種別かを返す
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindPermissionDenied || k == ErrorKindDeviceInUse
}

// PermissionStatus はカメラ権限の状態
type PermissionStatus string

const (
	PermissionPrompt  PermissionStatus = "prompt"
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
	PermissionUnknown PermissionStatus = "unknown" // 問い合わせ手段がない
)

// FacingMode はカメラの向き
type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

// Constraints はデバイス取得時の制約
type Constraints struct {
	Width      int        // 希望する幅 (ideal)
	Height     int        // 希望する高さ (ideal)
	FrameRate  int        // 希望するフレームレート
	FacingMode FacingMode // カメラの向き
	Audio      bool       // 音声トラックを要求するか
	Device     string     // 特定デバイスの指定 (空なら自動選択)
}

// DefaultConstraints は標準の取得制約を返す
func DefaultConstraints() Constraints {
	return Constraints{
		Width:      1280,
		Height:     720,
		FrameRate:  15,
		FacingMode: FacingUser,
		Audio:      false,
	}
}

// Track はハードウェアトラック
type Track interface {
	ID() string
	Kind() string // "video" など
	Label() string
	Stop()
	Stopped() bool
}

// StreamHandle は取得したハードウェアトラックへの参照
type StreamHandle interface {
	ID() string
	// Tracks は保持中のトラックを返す。停止後は空になる
	Tracks() []Track
	// StopAll は全トラックを停止する。複数回呼んでも安全
	StopAll()
}

// FrameSource はフレームを購読できるトラックが実装する
type FrameSource interface {
	Subscribe() (frames <-chan []byte, cancel func())
}

// Platform はカメラ取得機能を提供する外部プラットフォーム
type Platform interface {
	// IsSupported は取得機能そのものが存在するかを返す
	IsSupported() bool

	// RequestCapture はデバイスを取得する。失敗時は *PlatformError を返す
	RequestCapture(ctx context.Context, constraints Constraints) (StreamHandle, error)
}

// PermissionSource は権限の問い合わせに対応するプラットフォームが実装する
type PermissionSource interface {
	QueryPermission(ctx context.Context) (PermissionStatus, error)

	// WatchPermission は状態変化を通知する。戻り値の関数で監視を停止する
	WatchPermission(ctx context.Context, onChange func(PermissionStatus)) (stop func(), err error)
}

// PlatformError はプラットフォーム固有の分類名を持つ取得失敗
type PlatformError struct {
	Category string // 例: NotAllowedError, NotFoundError
	Message  string
	Err      error
}

// Error はエラーメッセージを返す
func (e *PlatformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap は元のエラーを返す
func (e *PlatformError) Unwrap() error {
	return e.Err
}

// NewPlatformError は新しいPlatformErrorを作成する
func NewPlatformError(category, message string, err error) *PlatformError {
	return &PlatformError{Category: category, Message: message, Err: err}
}

var (
	// ErrDisposed は破棄済みのコントローラーを操作したときに返される
	ErrDisposed = errors.New("capture: controller disposed")

	// ErrPlaybackUnsupported はサーフェスがストリームを再生できないときに返される
	ErrPlaybackUnsupported = errors.New("capture: playback unsupported")
)
