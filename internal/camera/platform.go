package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"signbridge/internal/capture"
)

// PlatformOption はPlatformの設定関数
type PlatformOption func(*Platform)

// WithDiscovery はデバイス検出を差し替える
func WithDiscovery(discovery Discovery) PlatformOption {
	return func(p *Platform) {
		p.discovery = discovery
	}
}

// WithStreamer はフレーム取得を差し替える
func WithStreamer(streamer Streamer) PlatformOption {
	return func(p *Platform) {
		p.streamer = streamer
	}
}

// WithLeases はデバイスの貸し出し管理を共有する
func WithLeases(leases *Leases) PlatformOption {
	return func(p *Platform) {
		p.leases = leases
	}
}

// WithPlatformLogger はロガーを設定する
func WithPlatformLogger(logger *slog.Logger) PlatformOption {
	return func(p *Platform) {
		p.logger = logger
	}
}

// WithStartTimeout は最初のフレームを待つ時間を設定する
func WithStartTimeout(timeout time.Duration) PlatformOption {
	return func(p *Platform) {
		p.startTimeout = timeout
	}
}

// WithFFmpegPath はffmpegのパスを設定する
func WithFFmpegPath(path string) PlatformOption {
	return func(p *Platform) {
		p.ffmpegPath = path
	}
}

// WithSysfsDir はvideo4linuxのsysfsディレクトリを設定する
func WithSysfsDir(dir string) PlatformOption {
	return func(p *Platform) {
		p.sysfsDir = dir
	}
}

// WithPermissionWatcher は権限の監視を設定する
func WithPermissionWatcher(watcher *PermissionWatcher) PlatformOption {
	return func(p *Platform) {
		p.permissions = watcher
	}
}

// Platform はLinux V4L2上のcapture.Platform実装
type Platform struct {
	discovery    Discovery
	streamer     Streamer
	leases       *Leases
	permissions  *PermissionWatcher
	logger       *slog.Logger
	startTimeout time.Duration
	ffmpegPath   string
	sysfsDir     string
	lookPath     func(string) (string, error)
}

// NewPlatform は新しいPlatformを作成する
func NewPlatform(opts ...PlatformOption) *Platform {
	p := &Platform{
		logger:       slog.Default(),
		startTimeout: 10 * time.Second,
		ffmpegPath:   "ffmpeg",
		sysfsDir:     "/sys/class/video4linux",
		lookPath:     exec.LookPath,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "v4l2")

	if p.discovery == nil {
		p.discovery = NewLinuxDiscovery("")
	}
	if p.streamer == nil {
		p.streamer = NewV4L2Capturer(p.ffmpegPath, p.logger)
	}
	if p.leases == nil {
		p.leases = NewLeases()
	}
	if p.permissions == nil {
		p.permissions = NewPermissionWatcher("/dev", p.logger)
	}

	return p
}

// IsSupported はffmpegとvideo4linuxが利用可能かを返す
func (p *Platform) IsSupported() bool {
	if _, err := p.lookPath(p.ffmpegPath); err != nil {
		return false
	}
	if _, err := os.Stat(p.sysfsDir); err != nil {
		return false
	}
	return true
}

// Discovery はデバイス検出を返す
func (p *Platform) Discovery() Discovery {
	return p.discovery
}

// Leases はデバイスの貸し出し管理を返す
func (p *Platform) Leases() *Leases {
	return p.leases
}

// QueryPermission はデバイスノードの権限状態を返す
func (p *Platform) QueryPermission(ctx context.Context) (capture.PermissionStatus, error) {
	return p.permissions.QueryPermission(ctx)
}

// WatchPermission はデバイスノードの権限変化を監視する
func (p *Platform) WatchPermission(ctx context.Context, onChange func(capture.PermissionStatus)) (func(), error) {
	return p.permissions.WatchPermission(ctx, onChange)
}

// RequestCapture はカメラを取得し、最初のフレームが届いた時点でストリームを返す
func (p *Platform) RequestCapture(ctx context.Context, constraints capture.Constraints) (capture.StreamHandle, error) {
	if constraints.Audio {
		return nil, capture.NewPlatformError("NotSupportedError", "音声トラックには対応していません", nil)
	}

	device, err := p.selectDevice(ctx, constraints)
	if err != nil {
		return nil, err
	}

	if err := p.discovery.CheckOpen(device); err != nil {
		return nil, openError(device, err)
	}

	streamID := uuid.NewString()
	if err := p.leases.Acquire(device, streamID); err != nil {
		return nil, err
	}

	label := device
	if info, err := p.discovery.GetDeviceInfo(ctx, device); err == nil && info.Name != "" {
		label = info.Name
	}

	track, err := p.startTrack(ctx, streamID, label, device, constraints)
	if err != nil {
		p.leases.Release(device, streamID)
		return nil, err
	}

	p.logger.Info("ストリームを開始しました", "stream_id", streamID, "device", device, "label", label)
	return &deviceStream{id: streamID, tracks: []*videoTrack{track}}, nil
}

// selectDevice は制約に合うデバイスを選ぶ
func (p *Platform) selectDevice(ctx context.Context, constraints capture.Constraints) (string, error) {
	if constraints.Device != "" {
		if !p.discovery.IsDeviceAvailable(ctx, constraints.Device) {
			return "", capture.NewPlatformError("NotFoundError",
				"指定されたデバイスが見つかりません: "+constraints.Device, syscall.ENOENT)
		}
		return constraints.Device, nil
	}

	devices, err := p.discovery.ScanDevices(ctx)
	if err != nil {
		return "", capture.NewPlatformError("AbortError", "デバイスのスキャンに失敗", err)
	}
	if len(devices) == 0 {
		return "", capture.NewPlatformError("NotFoundError", "カメラデバイスが見つかりません", nil)
	}

	// V4L2には向きの情報がないため、内蔵カメラは先頭、外向きは末尾とみなす
	if constraints.FacingMode == capture.FacingEnvironment {
		return devices[len(devices)-1], nil
	}
	return devices[0], nil
}

// startTrack はストリーミングを開始し、最初のフレームを待つ
func (p *Platform) startTrack(ctx context.Context, streamID, label, device string, constraints capture.Constraints) (*videoTrack, error) {
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	frames := make(chan []byte, 10)
	result := make(chan error, 1)

	var wg conc.WaitGroup
	wg.Go(func() {
		result <- p.streamer.Stream(streamCtx, device, constraints, frames)
	})

	abort := func() {
		cancel()
		wg.Wait()
	}

	timer := time.NewTimer(p.startTimeout)
	defer timer.Stop()

	var first []byte
	select {
	case first = <-frames:
	case err := <-result:
		abort()
		if err == nil {
			err = errors.New("ストリームが開始前に終了しました")
		}
		return nil, capture.NewPlatformError("NotReadableError", "トラックを開始できません: "+device, err)
	case <-timer.C:
		abort()
		return nil, capture.NewPlatformError("NotReadableError", "最初のフレームがタイムアウトしました: "+device, context.DeadlineExceeded)
	case <-ctx.Done():
		abort()
		return nil, capture.NewPlatformError("AbortError", "取得が中断されました", ctx.Err())
	}

	track := newVideoTrack(streamID+"-video", label, device)
	track.halt = abort
	track.release = func() {
		p.leases.Release(device, streamID)
		p.logger.Info("デバイスを解放しました", "stream_id", streamID, "device", device)
	}
	track.publish(first)

	wg.Go(func() {
		for {
			select {
			case frame := <-frames:
				track.publish(frame)
			case err := <-result:
				if streamCtx.Err() != nil {
					return
				}
				// ffmpegが途中で終了した。Stopを待たずにトラックを終わらせる
				p.logger.Warn("ストリームが終了しました", "stream_id", streamID, "device", device, "error", err)
				track.end()
				return
			case <-streamCtx.Done():
				return
			}
		}
	})

	return track, nil
}

// openError はデバイスを開く際の失敗をブラウザ互換の分類名に変換する
func openError(device string, err error) error {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return capture.NewPlatformError("AbortError", "デバイスを開けません: "+device, err)
	}

	var category string
	switch errno {
	case syscall.EACCES, syscall.EPERM:
		category = "NotAllowedError"
	case syscall.ENOENT, syscall.ENODEV, syscall.ENXIO:
		category = "NotFoundError"
	case syscall.EBUSY:
		category = "NotReadableError"
	default:
		category = "AbortError"
	}
	return capture.NewPlatformError(category, fmt.Sprintf("デバイスを開けません: %s", device), err)
}
