package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

var deviceNodePattern = regexp.MustCompile(`video(\d+)$`)

// LinuxDiscovery はLinux環境でのカメラデバイス検出を実装する
type LinuxDiscovery struct {
	devDir string // 通常は /dev
}

// NewLinuxDiscovery は新しいLinuxDiscoveryを作成する
// devDirが空の場合は /dev を使う
func NewLinuxDiscovery(devDir string) *LinuxDiscovery {
	if devDir == "" {
		devDir = "/dev"
	}
	return &LinuxDiscovery{devDir: devDir}
}

// DevDir はスキャン対象のディレクトリを返す
func (d *LinuxDiscovery) DevDir() string {
	return d.devDir
}

// ScanDevices はシステム内の利用可能なカメラデバイスをスキャンする
// 同じ物理カメラの複数ノードは最も小さい番号のみを返す
func (d *LinuxDiscovery) ScanDevices(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(d.devDir, "video*"))
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	// デバイス番号でソート
	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	var devices []string
	seenNames := make(map[string]bool)
	for _, match := range matches {
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		default:
		}

		if !d.IsDeviceAvailable(ctx, match) || !d.isCaptureDevice(ctx, match) {
			continue
		}

		// メタデータ用の兄弟ノードを除外する
		if name := d.getV4L2DeviceName(ctx, match); name != "" {
			if seenNames[name] {
				continue
			}
			seenNames[name] = true
		}
		devices = append(devices, match)
	}

	return devices, nil
}

// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
func (d *LinuxDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	if !isVideoNode(device) {
		return false
	}
	info, err := os.Stat(device)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// GetDeviceInfo はデバイスの詳細情報を取得する
func (d *LinuxDiscovery) GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error) {
	if !d.IsDeviceAvailable(ctx, device) {
		return nil, fmt.Errorf("デバイスが利用できません: %s", device)
	}

	name := d.getV4L2DeviceName(ctx, device)
	if name == "" {
		name = fmt.Sprintf("カメラ %d", extractDeviceNumber(device))
	}

	return &DeviceInfo{
		Device: device,
		Name:   name,
		Driver: "v4l2",
		Resolutions: []Resolution{
			{Width: 640, Height: 480},
			{Width: 1280, Height: 720},
			{Width: 1920, Height: 1080},
		},
		Formats: d.listFormats(ctx, device),
	}, nil
}

// CheckOpen はデバイスノードを読み書きモードで開けるか確認する
func (d *LinuxDiscovery) CheckOpen(device string) error {
	f, err := os.OpenFile(device, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return err
	}
	return f.Close()
}

// isCaptureDevice はカラー映像を取得できるノードかを判定する
func (d *LinuxDiscovery) isCaptureDevice(ctx context.Context, device string) bool {
	formats := d.listFormats(ctx, device)
	if formats == nil {
		// v4l2-ctlがない環境ではノードの存在だけで判断する
		return true
	}
	for _, f := range formats {
		if f == "YUYV" || f == "MJPG" {
			return true
		}
	}
	return false
}

// listFormats はv4l2-ctlでサポートフォーマットを取得する
func (d *LinuxDiscovery) listFormats(ctx context.Context, device string) []string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--list-formats").Output()
	if err != nil {
		return nil
	}

	formats := []string{}
	for _, line := range strings.Split(string(output), "\n") {
		// 例: [0]: 'MJPG' (Motion-JPEG, compressed)
		start := strings.Index(line, "'")
		if start == -1 {
			continue
		}
		end := strings.Index(line[start+1:], "'")
		if end == -1 {
			continue
		}
		formats = append(formats, line[start+1:start+1+end])
	}
	return formats
}

// getV4L2DeviceName はv4l2-ctlを使って実際のデバイス名を取得する
func (d *LinuxDiscovery) getV4L2DeviceName(ctx context.Context, device string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--info").Output()
	if err != nil {
		return ""
	}

	// "Card type" の行からカメラ名を抽出
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Card type") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}

	return ""
}

func isVideoNode(device string) bool {
	return deviceNodePattern.MatchString(filepath.Base(device))
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(device string) int {
	matches := deviceNodePattern.FindStringSubmatch(device)
	if len(matches) < 2 {
		return 0
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}

	return num
}

// MockDiscovery はテスト用のモックDiscovery実装
type MockDiscovery struct {
	mu          sync.Mutex
	devices     []string
	deviceInfos map[string]*DeviceInfo
	openErrors  map[string]error
}

// NewMockDiscovery は新しいMockDiscoveryを作成する
func NewMockDiscovery(devices []string) *MockDiscovery {
	m := &MockDiscovery{
		deviceInfos: make(map[string]*DeviceInfo),
		openErrors:  make(map[string]error),
	}
	for _, device := range devices {
		m.addLocked(device)
	}
	return m
}

// ScanDevices はモックデバイス一覧を返す
func (m *MockDiscovery) ScanDevices(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.devices...), nil
}

// IsDeviceAvailable はモックデバイスが利用可能かチェックする
func (m *MockDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.deviceInfos[device]
	return exists
}

// GetDeviceInfo はモックデバイス情報を取得する
func (m *MockDiscovery) GetDeviceInfo(_ context.Context, device string) (*DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, exists := m.deviceInfos[device]
	if !exists {
		return nil, fmt.Errorf("デバイスが見つかりません: %s", device)
	}

	// コピーを返す
	result := *info
	return &result, nil
}

// CheckOpen は設定されたエラーを返す
func (m *MockDiscovery) CheckOpen(device string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.openErrors[device]; ok {
		return err
	}
	if _, exists := m.deviceInfos[device]; !exists {
		return &os.PathError{Op: "open", Path: device, Err: syscall.ENOENT}
	}
	return nil
}

// SetOpenError はテスト用にデバイスを開く際のエラーを設定する
func (m *MockDiscovery) SetOpenError(device string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.openErrors, device)
		return
	}
	m.openErrors[device] = err
}

// AddDevice はテスト用にデバイスを追加する
func (m *MockDiscovery) AddDevice(device string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(device)
}

// RemoveDevice はテスト用にデバイスを削除する
func (m *MockDiscovery) RemoveDevice(device string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, d := range m.devices {
		if d == device {
			m.devices = append(m.devices[:i], m.devices[i+1:]...)
			break
		}
	}
	delete(m.deviceInfos, device)
}

func (m *MockDiscovery) addLocked(device string) {
	if _, exists := m.deviceInfos[device]; exists {
		return
	}
	m.devices = append(m.devices, device)
	m.deviceInfos[device] = &DeviceInfo{
		Device: device,
		Name:   fmt.Sprintf("テストカメラ %d", len(m.devices)),
		Driver: "mock",
		Resolutions: []Resolution{
			{Width: 640, Height: 480},
			{Width: 1280, Height: 720},
		},
		Formats: []string{"MJPG"},
	}
}
