package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"signbridge/internal/camera"
	"signbridge/internal/capture"
	"signbridge/internal/config"
	"signbridge/internal/generated"
)

// Option はServerの設定関数
type Option func(*Server)

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDiscovery はカメラ一覧の取得元を設定する
func WithDiscovery(discovery camera.Discovery) Option {
	return func(s *Server) {
		s.discovery = discovery
	}
}

// WithLeases はデバイスの貸し出し状況の取得元を設定する
func WithLeases(leases *camera.Leases) Option {
	return func(s *Server) {
		s.leases = leases
	}
}

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config      *config.Config
	logger      *slog.Logger
	discovery   camera.Discovery
	leases      *camera.Leases
	permissions *capture.PermissionTracker
	pages       *Registry
	handler     *SignBridgeHandler
	engine      *gin.Engine
	httpServer  *http.Server
	startedAt   time.Time

	cancel context.CancelFunc
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, platform capture.Platform, opts ...Option) (*Server, error) {
	s := &Server{
		config:    cfg,
		logger:    slog.Default(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	apiRouter, err := loadAPIRouter()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.permissions = capture.NewPermissionTracker(ctx, platform, s.logger)
	s.pages = NewRegistry(cfg.Pages, platform, s.permissions, cfg.Constraints(), s.logger)
	s.handler = &SignBridgeHandler{
		config:      cfg,
		platform:    platform,
		discovery:   s.discovery,
		leases:      s.leases,
		permissions: s.permissions,
		pages:       s.pages,
		startedAt:   s.startedAt,
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestLogger(s.logger), requestValidator(apiRouter))
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      s.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s, nil
}

// Handler はHTTPハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Pages はページの管理を返す
func (s *Server) Pages() *Registry {
	return s.pages
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	// OpenAPIドキュメントから生成されたルート
	generated.RegisterHandlersWithOptions(s.engine, s.handler, generated.GinServerOptions{
		ErrorHandler: func(c *gin.Context, err error, status int) {
			errorJSON(c, status, "invalid_parameter", err.Error())
		},
	})

	// ルートハンドラ（簡単な確認用）
	s.engine.GET("/", handleRoot)
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		s.logger.Info("HTTPサーバーを起動しています", "addr", s.config.ServerAddress())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		s.logger.Info("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.Info("シグナルを受信しました", "signal", sig.String())
	case err := <-shutdownCh:
		s.closeSessions()
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
// 全ページのセッションを破棄し、デバイスを解放する
func (s *Server) Shutdown() error {
	s.logger.Info("サーバーをシャットダウンしています")

	// ストリーム配信中の接続はページの破棄で終了する
	s.closeSessions()

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.logger.Info("サーバーが正常にシャットダウンされました")
	return nil
}

func (s *Server) closeSessions() {
	s.pages.Close()
	s.permissions.Close()
	s.cancel()
}

// requestLogger はリクエストをslogで記録するミドルウェア
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("リクエスト",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
