package config

import (
	"fmt"
	"regexp"
	"strings"

	"signbridge/internal/capture"
	"signbridge/internal/logging"
)

var pageNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidationError は1件の検証失敗を表す
type ValidationError struct {
	Field   string // 設定キー (例: server.port)
	Value   any    // 不正な値
	Message string // 説明
}

// Error はerrorインターフェースを実装する
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (値: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors は検証失敗の集合
type ValidationErrors []ValidationError

// Error はerrorインターフェースを実装する
func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d件の検証エラー:", len(e))
	for _, err := range e {
		sb.WriteString("\n  ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{"server.port", c.Server.Port, "無効なポート番号"})
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, ValidationError{"server.read_timeout", c.Server.ReadTimeout, "負の値は指定できません"})
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, ValidationError{"server.write_timeout", c.Server.WriteTimeout, "負の値は指定できません"})
	}

	// カメラ設定の検証
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, ValidationError{"camera.width", fmt.Sprintf("%dx%d", c.Camera.Width, c.Camera.Height), "解像度は正の値が必要です"})
	}
	if c.Camera.FPS <= 0 || c.Camera.FPS > 120 {
		errs = append(errs, ValidationError{"camera.fps", c.Camera.FPS, "フレームレートは1から120の範囲で指定してください"})
	}
	switch capture.FacingMode(c.Camera.FacingMode) {
	case capture.FacingUser, capture.FacingEnvironment:
	default:
		errs = append(errs, ValidationError{"camera.facing_mode", c.Camera.FacingMode, "user または environment を指定してください"})
	}
	if c.Camera.StartTimeout <= 0 {
		errs = append(errs, ValidationError{"camera.start_timeout", c.Camera.StartTimeout, "正の値が必要です"})
	}

	// ページ設定の検証
	if len(c.Pages) == 0 {
		errs = append(errs, ValidationError{"pages", c.Pages, "ページが1つも設定されていません"})
	}
	seen := make(map[string]bool, len(c.Pages))
	for _, page := range c.Pages {
		if !pageNamePattern.MatchString(page) {
			errs = append(errs, ValidationError{"pages", page, "ページ名は英小文字・数字・-・_ のみ使用できます"})
		}
		if seen[page] {
			errs = append(errs, ValidationError{"pages", page, "ページ名が重複しています"})
		}
		seen[page] = true
	}

	// ログ設定の検証
	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, ValidationError{"logging.level", c.Logging.Level, "debug, info, warn, error のいずれかを指定してください"})
	}
	if !logging.ValidFormat(c.Logging.Format) {
		errs = append(errs, ValidationError{"logging.format", c.Logging.Format, "text または json を指定してください"})
	}

	return errs
}
