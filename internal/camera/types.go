package camera

import (
	"context"

	"signbridge/internal/capture"
)

// Discovery はカメラデバイスの検出機能を提供する
type Discovery interface {
	// ScanDevices はシステム内の利用可能なカメラデバイスをスキャンする
	ScanDevices(ctx context.Context) ([]string, error)

	// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
	IsDeviceAvailable(ctx context.Context, device string) bool

	// GetDeviceInfo はデバイスの詳細情報を取得する
	GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error)

	// CheckOpen はデバイスノードを読み書きモードで開けるか確認する
	// 失敗時はerrnoを含むエラーを返す
	CheckOpen(device string) error
}

// Streamer はデバイスからMJPEGフレームを連続取得する
type Streamer interface {
	// Stream はctxがキャンセルされるか失敗するまでframesへフレームを送る
	Stream(ctx context.Context, device string, constraints capture.Constraints, frames chan<- []byte) error
}

// DeviceInfo はカメラデバイスの詳細情報を表す
type DeviceInfo struct {
	Device      string       `json:"device"`      // デバイスパス
	Name        string       `json:"name"`        // デバイス名
	Driver      string       `json:"driver"`      // ドライバー名
	Resolutions []Resolution `json:"resolutions"` // サポートされる解像度
	Formats     []string     `json:"formats"`     // サポートされるフォーマット
}

// Resolution はカメラの解像度を表す
type Resolution struct {
	Width  int `json:"width"`  // 幅
	Height int `json:"height"` // 高さ
}
