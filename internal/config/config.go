package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"signbridge/internal/capture"
	"signbridge/internal/logging"
)

// EnvPrefix は環境変数の接頭辞
const EnvPrefix = "SIGNBRIDGE"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Camera  CameraConfig  `mapstructure:"camera"`
	Pages   []string      `mapstructure:"pages"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `mapstructure:"host"` // リッスンするホスト
	Port int    `mapstructure:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`     // 読み込みタイムアウト
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`    // 書き込みタイムアウト
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // 終了待ちのタイムアウト
}

// CameraConfig はカメラ取得の設定
type CameraConfig struct {
	Device       string        `mapstructure:"device"`        // デバイスパス。空なら自動選択
	Width        int           `mapstructure:"width"`         // 画像幅
	Height       int           `mapstructure:"height"`        // 画像高さ
	FPS          int           `mapstructure:"fps"`           // フレームレート
	FacingMode   string        `mapstructure:"facing_mode"`   // user または environment
	StartTimeout time.Duration `mapstructure:"start_timeout"` // 最初のフレームを待つ時間
	FFmpegPath   string        `mapstructure:"ffmpeg_path"`   // ffmpegのパス
	DevDir       string        `mapstructure:"dev_dir"`       // デバイスノードのディレクトリ
}

// LoggingConfig はログ出力の設定
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text または json
}

// Default はデフォルト設定を返す
func Default() *Config {
	constraints := capture.DefaultConstraints()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0, // ストリーミング用にタイムアウト無効化
			ShutdownTimeout: 10 * time.Second,
		},
		Camera: CameraConfig{
			Width:        constraints.Width,
			Height:       constraints.Height,
			FPS:          constraints.FrameRate,
			FacingMode:   string(constraints.FacingMode),
			StartTimeout: 10 * time.Second,
			FFmpegPath:   "ffmpeg",
			DevDir:       "/dev",
		},
		Pages: []string{"practice", "convert"},
		Logging: LoggingConfig{
			Level:  logging.LevelInfo,
			Format: logging.FormatText,
		},
	}
}

// SetDefaults はviperにデフォルト値を登録する
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", defaults.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)

	v.SetDefault("camera.device", defaults.Camera.Device)
	v.SetDefault("camera.width", defaults.Camera.Width)
	v.SetDefault("camera.height", defaults.Camera.Height)
	v.SetDefault("camera.fps", defaults.Camera.FPS)
	v.SetDefault("camera.facing_mode", defaults.Camera.FacingMode)
	v.SetDefault("camera.start_timeout", defaults.Camera.StartTimeout)
	v.SetDefault("camera.ffmpeg_path", defaults.Camera.FFmpegPath)
	v.SetDefault("camera.dev_dir", defaults.Camera.DevDir)

	v.SetDefault("pages", defaults.Pages)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
}

// New は環境変数を読むviperを作成する
// SIGNBRIDGE_SERVER_PORT のように、ネストしたキーの "." は "_" に置き換える
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 従来の環境変数も受け付ける
	_ = v.BindEnv("server.host", EnvPrefix+"_SERVER_HOST", "SERVER_HOST")
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")

	return v
}

// ReadFile は設定ファイルを読み込む。pathが空ならカレントディレクトリの signbridge.yaml を探す
// 既定の場所にファイルがなくてもエラーにはしない
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		return nil
	}

	v.SetConfigName("signbridge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/signbridge")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	return nil
}

// Load はviperから設定を読み出して検証する
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定の展開に失敗: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("設定の検証に失敗: %w", ValidationErrors(errs))
	}

	return &cfg, nil
}

// LoadFile は設定ファイルと環境変数から設定を読み込む
func LoadFile(path string) (*Config, error) {
	v := New()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return Load(v)
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Constraints はカメラ設定を取得制約に変換する
func (c *Config) Constraints() capture.Constraints {
	return capture.Constraints{
		Width:      c.Camera.Width,
		Height:     c.Camera.Height,
		FrameRate:  c.Camera.FPS,
		FacingMode: capture.FacingMode(c.Camera.FacingMode),
		Device:     c.Camera.Device,
	}
}
