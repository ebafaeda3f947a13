package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"signbridge/internal/camera"
	"signbridge/internal/capture"
	"signbridge/internal/config"
	"signbridge/internal/generated"
)

// snapshotTimeout はスナップショットのフレームを待つ時間
const snapshotTimeout = 3 * time.Second

// SignBridgeHandler は生成されたServerInterfaceを実装する
type SignBridgeHandler struct {
	config      *config.Config
	platform    capture.Platform
	discovery   camera.Discovery
	leases      *camera.Leases
	permissions *capture.PermissionTracker
	pages       *Registry
	startedAt   time.Time
}

var _ generated.ServerInterface = (*SignBridgeHandler)(nil)

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *SignBridgeHandler) HealthCheck(c *gin.Context) {
	response := generated.HealthResponse{
		Status:    generated.Healthy,
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *SignBridgeHandler) GetStatus(c *gin.Context) {
	leased := 0
	if h.leases != nil {
		leased = h.leases.Count()
	}
	permission := h.permissions.Status()

	response := generated.StatusResponse{
		Status: generated.Running,
		Server: generated.ServerInfo{
			Host: h.config.Server.Host,
			Port: h.config.Server.Port,
		},
		Supported:    h.platform.IsSupported(),
		Permission:   apiPermission(permission),
		Pages:        h.pages.Views(permission),
		DevicesInUse: leased,
		Uptime:       time.Since(h.startedAt).Round(time.Second).String(),
		Timestamp:    time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// GetCameras はカメラ一覧取得エンドポイントの実装
func (h *SignBridgeHandler) GetCameras(c *gin.Context) {
	cameras := make([]generated.CameraInfo, 0)
	if h.discovery == nil {
		c.JSON(http.StatusOK, generated.CamerasResponse{Cameras: cameras})
		return
	}

	devices, err := h.discovery.ScanDevices(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "scan_failed", fmt.Sprintf("デバイスのスキャンに失敗: %v", err))
		return
	}

	for _, device := range devices {
		info := generated.CameraInfo{Device: device, Name: device}
		if detail, err := h.discovery.GetDeviceInfo(c.Request.Context(), device); err == nil {
			info.Name = detail.Name
			info.Driver = optionalString(detail.Driver)
		}
		if h.leases != nil {
			_, info.InUse = h.leases.Holder(device)
		}
		cameras = append(cameras, info)
	}

	c.JSON(http.StatusOK, generated.CamerasResponse{Cameras: cameras})
}

// GetCameraPermission は権限状態を問い合わせる
// プロンプトは発生させない
func (h *SignBridgeHandler) GetCameraPermission(c *gin.Context) {
	status := h.permissions.Query(c.Request.Context())
	if status == capture.PermissionUnknown {
		// 問い合わせ手段がない場合は最後に観測した状態を返す
		status = h.permissions.Status()
	}

	response := generated.PermissionResponse{Status: apiPermission(status)}
	if dialog, ok := capture.PermissionDialog(status); ok {
		response.Dialog = apiDialog(dialog)
	}
	c.JSON(http.StatusOK, response)
}

// GetPageCamera はページのカメラ状態を返す
func (h *SignBridgeHandler) GetPageCamera(c *gin.Context, name generated.PageName) {
	page, ok := h.page(c, name)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, page.View(h.permissions.Status()))
}

// StartPageCamera はセッションを開始する
// 取得は非同期で行われ、結果は状態として反映される
func (h *SignBridgeHandler) StartPageCamera(c *gin.Context, name generated.PageName) {
	page, ok := h.page(c, name)
	if !ok {
		return
	}

	if err := page.Controller().Start(c.Request.Context()); err != nil {
		if errors.Is(err, capture.ErrDisposed) {
			errorJSON(c, http.StatusConflict, "page_closed", "ページは破棄されています")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "start_failed", err.Error())
		return
	}
	c.JSON(http.StatusAccepted, page.View(h.permissions.Status()))
}

// StopPageCamera はセッションを停止する
func (h *SignBridgeHandler) StopPageCamera(c *gin.Context, name generated.PageName) {
	page, ok := h.page(c, name)
	if !ok {
		return
	}
	page.Controller().Stop()
	c.JSON(http.StatusOK, page.View(h.permissions.Status()))
}

// ClearPageCameraError はエラー状態を解除する
func (h *SignBridgeHandler) ClearPageCameraError(c *gin.Context, name generated.PageName) {
	page, ok := h.page(c, name)
	if !ok {
		return
	}
	page.Controller().ClearError()
	c.JSON(http.StatusOK, page.View(h.permissions.Status()))
}

// ResetPageCamera は停止状態からidleへ戻す
func (h *SignBridgeHandler) ResetPageCamera(c *gin.Context, name generated.PageName) {
	page, ok := h.page(c, name)
	if !ok {
		return
	}
	page.Controller().Reset()
	c.JSON(http.StatusOK, page.View(h.permissions.Status()))
}

// LeavePage はページから離れ、セッションを破棄する
func (h *SignBridgeHandler) LeavePage(c *gin.Context, name generated.PageName) {
	if !h.knownPage(c, name) {
		return
	}
	left := h.pages.Leave(name)
	c.JSON(http.StatusOK, generated.LeaveResponse{Page: name, Left: left})
}

// StreamPageCamera はMJPEGストリームを配信する
// 接続中のビューアがページの描画先になり、切断すると結合が解除される
func (h *SignBridgeHandler) StreamPageCamera(c *gin.Context, name generated.PageName) {
	page, ok := h.page(c, name)
	if !ok {
		return
	}

	surface := newMJPEGSurface(uuid.NewString())
	page.Binder().Bind(surface)
	defer page.Binder().Unbind(surface)
	defer surface.Detach()

	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Surface-ID", surface.ID())
	c.Status(http.StatusOK)
	c.Writer.Flush()

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	// ストリーミングループ
	for {
		frames := surface.current()

		select {
		case <-clientGone:
			return
		case <-page.Done():
			return
		case <-surface.changed:
			continue
		case frame, ok := <-frames:
			if !ok {
				// トラックが停止した。次のセッションを待つ
				surface.drop(frames)
				continue
			}
			if err := writeMJPEGFrame(c.Writer, frame); err != nil {
				return
			}
			// バッファをフラッシュ
			c.Writer.Flush()
		}
	}
}

// PageCameraEvents は状態遷移をServer-Sent Eventsで配信する
func (h *SignBridgeHandler) PageCameraEvents(c *gin.Context, name generated.PageName) {
	page, ok := h.page(c, name)
	if !ok {
		return
	}

	events, unsubscribe := page.events.subscribe()
	defer unsubscribe()

	permissions := make(chan capture.PermissionStatus, 4)
	stopPermissions := h.permissions.Subscribe(func(status capture.PermissionStatus) {
		select {
		case permissions <- status:
		default:
		}
	})
	defer stopPermissions()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// 接続直後に現在の状態を送る
	c.SSEvent("page", page.View(h.permissions.Status()))
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	c.Stream(func(io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(event.Type, event.Data)
			return true
		case status := <-permissions:
			c.SSEvent("permission", generated.PermissionResponse{Status: apiPermission(status)})
			return true
		}
	})
}

// PageCameraSnapshot はactiveなセッションの最新フレームを1枚返す
func (h *SignBridgeHandler) PageCameraSnapshot(c *gin.Context, name generated.PageName) {
	page, ok := h.page(c, name)
	if !ok {
		return
	}

	snapshot, stream := page.Controller().Current()
	if snapshot.State != capture.StateActive || stream == nil {
		errorJSON(c, http.StatusConflict, "camera_not_active", "カメラがアクティブではありません")
		return
	}

	frame, err := latestFrame(c.Request.Context(), stream, snapshotTimeout)
	if err != nil {
		errorJSON(c, http.StatusServiceUnavailable, "no_frame", err.Error())
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Session-ID", snapshot.SessionID)
	c.Data(http.StatusOK, "image/jpeg", frame)
}

// handleRoot はルートパスのハンドラ
// APIドキュメントの対象外
func handleRoot(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, `<!DOCTYPE html>
<html lang="ja">
<head>
    <meta charset="UTF-8">
    <title>SignBridge - カメラセッション</title>
</head>
<body>
    <h1>SignBridge カメラセッション</h1>
    <p>サーバーが正常に起動しています。</p>
    <p>ステータス: <a href="/api/status">/api/status</a></p>
    <p>カメラ権限: <a href="/api/camera/permission">/api/camera/permission</a></p>
    <p>ヘルスチェック: <a href="/health">/health</a></p>
</body>
</html>`)
}

// ヘルパー関数

// page はページを取得する。失敗時はエラー応答を書いてfalseを返す
func (h *SignBridgeHandler) page(c *gin.Context, name string) (*Page, bool) {
	page, err := h.pages.Get(name)
	switch {
	case err == nil:
		return page, true
	case errors.Is(err, ErrUnknownPage):
		errorJSON(c, http.StatusNotFound, "page_not_found", "指定されたページが見つかりません: "+name)
	case errors.Is(err, ErrRegistryClosed):
		errorJSON(c, http.StatusServiceUnavailable, "shutting_down", err.Error())
	default:
		errorJSON(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
	return nil, false
}

// knownPage は設定済みのページ名かを確認する
func (h *SignBridgeHandler) knownPage(c *gin.Context, name string) bool {
	for _, known := range h.pages.Names() {
		if known == name {
			return true
		}
	}
	errorJSON(c, http.StatusNotFound, "page_not_found", "指定されたページが見つかりません: "+name)
	return false
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, generated.ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// latestFrame はストリームの映像トラックからフレームを1枚受け取る
func latestFrame(ctx context.Context, stream capture.StreamHandle, timeout time.Duration) ([]byte, error) {
	for _, track := range stream.Tracks() {
		source, ok := track.(capture.FrameSource)
		if !ok || track.Kind() != "video" {
			continue
		}

		frames, unsubscribe := source.Subscribe()
		defer unsubscribe()

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case frame, ok := <-frames:
			if !ok {
				return nil, errors.New("トラックは停止しています")
			}
			return frame, nil
		case <-timer.C:
			return nil, errors.New("フレームの取得がタイムアウトしました")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, capture.ErrPlaybackUnsupported
}

// writeMJPEGFrame はmultipartの1パートとしてフレームを書き込む
func writeMJPEGFrame(w io.Writer, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
