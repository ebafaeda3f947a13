// Package cmd はsignbridgeコマンドの実装です
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"signbridge/internal/camera"
	"signbridge/internal/config"
	"signbridge/internal/logging"
)

// app はコマンド間で共有する状態
type app struct {
	v         *viper.Viper
	cfg       *config.Config
	logger    *slog.Logger
	discovery camera.Discovery // nilならLinuxDiscoveryを使う
}

// Execute はルートコマンドを実行する
func Execute() error {
	return newRootCommand(&app{}).Execute()
}

func newRootCommand(a *app) *cobra.Command {
	a.v = config.New()

	root := &cobra.Command{
		Use:   "signbridge",
		Short: "カメラセッションサーバー",
		Long: `SignBridge はページごとのカメラセッションを管理するサーバーです。
カメラの権限状態を監視し、取得・停止・エラーからの復帰を状態機械として扱い、
映像をMJPEGで配信します。`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
		RunE:              a.runServe,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "設定ファイル (デフォルト: ./signbridge.yaml)")
	flags.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
	flags.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
	flags.String("log-level", "", "ログレベル (debug, info, warn, error)")

	_ = a.v.BindPFlag("server.host", flags.Lookup("host"))
	_ = a.v.BindPFlag("server.port", flags.Lookup("port"))
	_ = a.v.BindPFlag("logging.level", flags.Lookup("log-level"))

	root.AddCommand(
		newServeCommand(a),
		newDevicesCommand(a),
		newPermissionCommand(a),
	)

	return root
}

// load は設定を読み込み、ロガーを初期化する
func (a *app) load(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	if err := config.ReadFile(a.v, path); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}
	a.cfg = cfg
	a.logger = logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	return nil
}

func (a *app) discoverer() camera.Discovery {
	if a.discovery != nil {
		return a.discovery
	}
	devDir := ""
	if a.cfg != nil {
		devDir = a.cfg.Camera.DevDir
	}
	return camera.NewLinuxDiscovery(devDir)
}
