package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc"
	"golang.org/x/sys/unix"

	"signbridge/internal/capture"
)

// PermissionWatcher はデバイスノードの権限からカメラ権限の状態を判定する
// ノードを開くことはしないため、カメラの点灯や取得は発生しない
type PermissionWatcher struct {
	devDir string
	logger *slog.Logger
}

// NewPermissionWatcher は新しいPermissionWatcherを作成する
func NewPermissionWatcher(devDir string, logger *slog.Logger) *PermissionWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionWatcher{devDir: devDir, logger: logger}
}

// QueryPermission は現在の権限状態を返す
//   - いずれかのノードを読み書きできる: granted
//   - 全てのノードがEACCES/EPERM: denied
//   - ノードがない、または判定できない: prompt
func (w *PermissionWatcher) QueryPermission(_ context.Context) (capture.PermissionStatus, error) {
	nodes, err := filepath.Glob(filepath.Join(w.devDir, "video*"))
	if err != nil {
		return capture.PermissionUnknown, fmt.Errorf("デバイスノードの列挙に失敗: %w", err)
	}

	denied := 0
	checked := 0
	for _, node := range nodes {
		if !isVideoNode(node) {
			continue
		}
		checked++
		err := unix.Access(node, unix.R_OK|unix.W_OK)
		if err == nil {
			return capture.PermissionGranted, nil
		}
		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			denied++
		}
	}

	if checked > 0 && denied == checked {
		return capture.PermissionDenied, nil
	}
	return capture.PermissionPrompt, nil
}

// WatchPermission はデバイスノードの作成・削除・属性変更を監視し、状態の変化を通知する
func (w *PermissionWatcher) WatchPermission(ctx context.Context, onChange func(capture.PermissionStatus)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("監視の作成に失敗: %w", err)
	}
	if err := watcher.Add(w.devDir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("%s の監視に失敗: %w", w.devDir, err)
	}

	last, _ := w.QueryPermission(ctx)
	done := make(chan struct{})

	var wg conc.WaitGroup
	wg.Go(func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isVideoNode(event.Name) {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Chmod) {
					continue
				}
				status, err := w.QueryPermission(ctx)
				if err != nil || status == last {
					continue
				}
				last = status
				onChange(status)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("デバイスノードの監視でエラー", "error", err)
			}
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			_ = watcher.Close()
			wg.Wait()
		})
	}, nil
}
