package rest

import (
	"context"
	"errors"
	"net/http"

	authapp "change-server/internal/application/auth"
	dispenseapp "change-server/internal/application/change_dispense"
	acceptanceapp "change-server/internal/application/coin_acceptance"
	historyapp "change-server/internal/application/history"
	paymentapp "change-server/internal/application/payment"
	settingsapp "change-server/internal/application/settings"
	"change-server/internal/infrastructure/config"
	otelinfra "change-server/internal/infrastructure/observability/otel"
	"change-server/internal/presentation/rest/handler"
	restmiddleware "change-server/internal/presentation/rest/middleware"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Services ルーターが使うアプリケーションサービス
type Services struct {
	Auth     *authapp.AuthApplicationService
	Payment  *paymentapp.PaymentApplicationService
	Dispense *dispenseapp.DispenseApplicationService
	History  *historyapp.HistoryApplicationService
	Settings *settingsapp.SettingsApplicationService

	// Acceptance 硬貨投入口を使わない構成では nil
	Acceptance *acceptanceapp.AcceptanceApplicationService
}

// Router REST APIルーター
type Router struct {
	echo *echo.Echo
}

// NewRouter 新しいRouterを作成
func NewRouter(
	cfg *config.Config,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	db handler.DatabaseChecker,
	services Services,
) (*Router, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	// ErrorHandlerMiddleware で応答済みでなければEchoの既定の処理に任せる
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		e.DefaultHTTPErrorHandler(err, c)
	}

	setupMiddleware(e, logger, metrics)

	var acceptance *handler.AcceptanceHandler
	if services.Acceptance != nil {
		acceptance = handler.NewAcceptanceHandler(services.Acceptance)
	}

	setupRoutes(e, cfg, logger, routeHandlers{
		auth:       handler.NewAuthHandler(services.Auth),
		payment:    handler.NewPaymentHandler(services.Payment),
		change:     handler.NewChangeHandler(services.Payment, services.Dispense),
		admin:      handler.NewAdminHandler(services.Dispense, services.Settings),
		history:    handler.NewHistoryHandler(services.History),
		health:     handler.NewHealthHandler(db, services.Dispense),
		acceptance: acceptance,
	})

	// Swagger UI / ReDoc統合
	SetupSwagger(e)

	return &Router{echo: e}, nil
}

type routeHandlers struct {
	auth    *handler.AuthHandler
	payment *handler.PaymentHandler
	change  *handler.ChangeHandler
	admin   *handler.AdminHandler
	history *handler.HistoryHandler
	health  *handler.HealthHandler

	// 投入口がなければ nil
	acceptance *handler.AcceptanceHandler
}

// setupMiddleware ミドルウェアを設定
func setupMiddleware(e *echo.Echo, logger *otelinfra.Logger, metrics *otelinfra.Metrics) {
	e.Use(middleware.Recover())
	e.Use(restmiddleware.SecurityHeadersMiddleware())

	// キオスク端末はローカルネットワーク上のブラウザから呼び出す
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			restmiddleware.HeaderAPIKey,
		},
	}))

	e.Use(middleware.RequestID())
	e.Use(restmiddleware.TracingMiddleware())
	e.Use(restmiddleware.LoggingMiddleware(logger))
	e.Use(restmiddleware.MetricsMiddleware(metrics))
	e.Use(restmiddleware.ErrorHandlerMiddleware(logger))
}

// setupRoutes ルーティングを設定
func setupRoutes(e *echo.Echo, cfg *config.Config, logger *otelinfra.Logger, h routeHandlers) {
	api := e.Group("/api/v1")

	// キオスク端末向け（JWT認証）
	kiosk := api.Group("", restmiddleware.AuthMiddleware(&cfg.JWT, logger))
	kiosk.GET("/payments/suggestions", h.payment.SuggestPayments)
	kiosk.POST("/payments/validate", h.payment.ValidatePayment)
	kiosk.GET("/payments/best", h.payment.BestPayment)
	kiosk.GET("/change/status", h.change.GetStatus)
	kiosk.POST("/change/dispense", h.change.Dispense)
	if h.acceptance != nil {
		kiosk.POST("/payments/window", h.acceptance.OpenWindow)
		kiosk.GET("/payments/window", h.acceptance.GetWindow)
		kiosk.DELETE("/payments/window", h.acceptance.CloseWindow)
	}

	// 管理API（APIキー認証）
	admin := api.Group("/admin", restmiddleware.APIKeyMiddleware(&cfg.AdminAPI, logger))
	admin.POST("/auth/token", h.auth.IssueToken)
	admin.GET("/inventory", h.admin.GetInventory)
	admin.POST("/inventory/deposit", h.admin.Deposit)
	admin.POST("/inventory/adjust", h.admin.Adjust)
	admin.GET("/settings", h.admin.GetSettings)
	admin.PUT("/settings", h.admin.UpdateSettings)
	admin.GET("/hardware", h.admin.GetHardwareStatus)
	admin.POST("/hardware/reconnect", h.admin.Reconnect)
	admin.GET("/dispenses", h.history.ListRecords)
	admin.GET("/dispenses/:record_id", h.history.GetRecord)

	// ヘルスチェック（認証不要）
	e.GET("/health", h.health.Health)
}

// ServeHTTP http.Handlerとして振る舞う
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.echo.ServeHTTP(w, req)
}

// Start サーバーを起動（Shutdownによる停止はエラーにしない）
func (r *Router) Start(address string) error {
	if err := r.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 処理中のリクエストを待ってサーバーを停止
func (r *Router) Shutdown(ctx context.Context) error {
	return r.echo.Shutdown(ctx)
}
