// Package logging はアプリケーション全体で使うslogロガーを構築する
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ログレベル
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// 出力形式
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New はレベルと形式を指定してロガーを作成する。wがnilなら標準エラー出力に書く
func New(w io.Writer, level, format string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.EqualFold(format, FormatJSON) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup はロガーを作成し、slogのデフォルトに設定する
func Setup(level, format string) *slog.Logger {
	logger := New(os.Stderr, level, format)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel は文字列をslog.Levelに変換する。不明な値はinfoとみなす
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn, "warning":
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel はレベル文字列が既知の値かを返す
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case LevelDebug, LevelInfo, LevelWarn, "warning", LevelError:
		return true
	}
	return false
}

// ValidFormat は出力形式が既知の値かを返す
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case FormatText, FormatJSON:
		return true
	}
	return false
}
