package cmd

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"signbridge/internal/camera"
	"signbridge/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "HTTPサーバーを起動する",
		Long:  `HTTPサーバーを起動します。引数なしで signbridge を実行した場合もこのコマンドになります。`,
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	cfg := a.cfg
	if a.logger.Enabled(cmd.Context(), slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	platform := camera.NewPlatform(
		camera.WithDiscovery(a.discoverer()),
		camera.WithPlatformLogger(a.logger),
		camera.WithStartTimeout(cfg.Camera.StartTimeout),
		camera.WithFFmpegPath(cfg.Camera.FFmpegPath),
		camera.WithPermissionWatcher(camera.NewPermissionWatcher(cfg.Camera.DevDir, a.logger)),
	)
	if !platform.IsSupported() {
		a.logger.Warn("カメラ取得機能が利用できません。開始要求はunsupported_environmentになります",
			"ffmpeg", cfg.Camera.FFmpegPath)
	}

	srv, err := server.New(cfg, platform,
		server.WithLogger(a.logger),
		server.WithDiscovery(platform.Discovery()),
		server.WithLeases(platform.Leases()),
	)
	if err != nil {
		return err
	}

	a.logger.Info("SignBridge サーバーを起動します", "addr", cfg.ServerAddress(), "pages", cfg.Pages)
	return srv.Start(cmd.Context())
}
