package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"microtrade/internal/broker"
	"microtrade/internal/broker/free"
	"microtrade/internal/broker/kis"
	"microtrade/internal/broker/paper"
	"microtrade/internal/config"
	cronrunner "microtrade/internal/cron"
	"microtrade/internal/db"
	"microtrade/internal/handler"
	"microtrade/internal/ledger"
	"microtrade/internal/logger"
	"microtrade/internal/marketdata"
	"microtrade/internal/repository"
	gormrepository "microtrade/internal/repository/gorm"
	"microtrade/internal/strategy"
	"microtrade/internal/trading"
)

func main() {
	cfgPath := os.Getenv("MT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("MT_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ledger.EnsureAccounts(ctx, store, cfg.Paper.InitialBalance, cfg.Paper.CommissionRate, logger); err != nil {
		logger.Fatal("account bootstrap failed", zap.Error(err))
	}

	fallbackMode := trading.ModePaper
	if m, ok := trading.ParseMode(cfg.Trading.DefaultMode); ok {
		fallbackMode = m
	}
	modeSwitch := trading.NewModeSwitch(&trading.SettingModeStore{Repo: store}, logger, fallbackMode)
	modeSwitch.Restore(ctx)

	kisHTTP := &http.Client{Timeout: cfg.KIS.Timeout}
	var realClient, mockClient *kis.Client
	if cfg.KIS.Real.Configured() {
		realClient = kis.NewClient(kisHTTP, cfg.KIS.Real.BaseURL, cfg.KIS.Real.AppKey, cfg.KIS.Real.AppSecret, logger)
	}
	if cfg.KIS.Paper.Configured() {
		mockClient = kis.NewClient(kisHTTP, cfg.KIS.Paper.BaseURL, cfg.KIS.Paper.AppKey, cfg.KIS.Paper.AppSecret, logger)
	}

	freeHTTP := &http.Client{Timeout: cfg.Free.Timeout}
	freeProvider := free.NewProvider(freeHTTP, cfg.Free.Endpoint, logger)

	// Paper fills price against the mock brokerage feed when credentials
	// exist, the keyless provider otherwise.
	var paperQuotes broker.QuoteSource = freeProvider
	if mockClient != nil {
		paperQuotes = kis.NewBroker(mockClient, cfg.KIS.AccountNo, logger)
	}

	registry := broker.NewRegistry(func(mode trading.Mode) (broker.Broker, error) {
		switch mode {
		case trading.ModeReal:
			if realClient == nil {
				return nil, fmt.Errorf("real mode requires kis credentials")
			}
			return kis.NewBroker(realClient, cfg.KIS.AccountNo, logger), nil
		case trading.ModePaper:
			engine := paper.NewEngine(cfg.Paper.SlippageRate)
			balances := &ledger.PaperBalanceSource{Repo: store}
			return paper.NewBroker(engine, paperQuotes, balances, logger), nil
		}
		return nil, broker.ErrUnknownMode
	}, logger)
	defer registry.Shutdown(context.Background())

	gateway := func(ctx context.Context) (broker.QuoteSource, error) {
		return registry.Get(ctx, modeSwitch.Current())
	}
	cache := marketdata.NewCache(store, gateway, cfg.Quotes.MemoryTTL, logger)

	orderLedger := ledger.NewOrderLedger(store, cache, registry, modeSwitch, logger)
	portfolioLedger := ledger.NewPortfolioLedger(store, cache, registry, logger)
	refresher := marketdata.NewRefresher(store, cache, logger)
	strategyRunner := strategy.NewRunner(store, cache, orderLedger, modeSwitch, logger)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	orderHandler := &handler.OrderHandler{Repo: store, Orders: orderLedger}
	orderHandler.Register(engine)
	portfolioHandler := &handler.PortfolioHandler{Repo: store, Portfolio: portfolioLedger, Mode: modeSwitch}
	portfolioHandler.Register(engine)
	marketHandler := &handler.MarketHandler{Cache: cache}
	marketHandler.Register(engine)
	watchlistHandler := &handler.WatchlistHandler{Repo: store}
	watchlistHandler.Register(engine)
	strategyHandler := &handler.StrategyHandler{Repo: store, Runner: strategyRunner}
	strategyHandler.Register(engine)
	systemHandler := &handler.SystemHandler{
		Repo:        store,
		Mode:        modeSwitch,
		TokenStatus: tokenStatus(realClient, mockClient),
	}
	systemHandler.Register(engine)

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		if _, err := cronRunner.Add("quote-refresh", cfg.Cron.QuoteRefresh, func(ctx context.Context) {
			refresher.RunOnce(ctx)
		}); err != nil {
			logger.Warn("cron register quote refresh failed", zap.Error(err))
		}
		if _, err := cronRunner.Add("strategy-tick", cfg.Cron.StrategyTick, strategyRunner.RunOnce); err != nil {
			logger.Warn("cron register strategy tick failed", zap.Error(err))
		}
		if _, err := cronRunner.Add("portfolio-snapshot", cfg.Cron.Snapshot, func(ctx context.Context) {
			count, err := portfolioLedger.TakeDailySnapshot(ctx)
			if err != nil {
				logger.Warn("portfolio snapshot failed", zap.Error(err))
				return
			}
			logger.Info("portfolio snapshot ok", zap.Int("accounts", count))
		}); err != nil {
			logger.Warn("cron register snapshot failed", zap.Error(err))
		}
		if _, err := cronRunner.Add("token-refresh", cfg.Cron.TokenRefresh, func(ctx context.Context) {
			for _, client := range []*kis.Client{realClient, mockClient} {
				if client == nil || !client.TokenExpiresSoon() {
					continue
				}
				if err := client.ForceRefresh(ctx); err != nil {
					logger.Warn("token refresh failed",
						zap.Bool("mock", client.IsMock()), zap.Error(err))
				}
			}
		}); err != nil {
			logger.Warn("cron register token refresh failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	if cfg.Stream.Enabled {
		startStream(ctx, cfg, store, cache, logger)
	}

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// startStream subscribes the enabled watchlist to the realtime tick feed
// and pushes parsed ticks straight into the quote cache.
func startStream(ctx context.Context, cfg config.Config, store repository.Repository, cache *marketdata.Cache, logger *zap.Logger) {
	creds := cfg.KIS.Real
	if !creds.Configured() {
		creds = cfg.KIS.Paper
	}
	if !creds.Configured() {
		logger.Warn("stream enabled but no kis credentials configured")
		return
	}
	enabled := true
	items, err := store.ListWatchlistItems(ctx, repository.ListWatchlistParams{Enabled: &enabled})
	if err != nil {
		logger.Warn("stream watchlist load failed", zap.Error(err))
		return
	}
	symbols := make([]string, 0, len(items))
	for _, item := range items {
		symbols = append(symbols, item.Symbol)
	}
	if len(symbols) == 0 {
		logger.Info("stream enabled but watchlist is empty, skipping")
		return
	}
	stream := &kis.QuoteStream{
		Logger:         logger,
		URL:            cfg.Stream.URL,
		AppKey:         creds.AppKey,
		AppSecret:      creds.AppSecret,
		Symbols:        symbols,
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		MaxBackoff:     cfg.Stream.MaxReconnectGap,
		Sink: func(q broker.Quote) {
			cache.Put(ctx, q)
		},
	}
	go stream.Run(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func tokenStatus(realClient, mockClient *kis.Client) handler.TokenStatusFunc {
	status := func(client *kis.Client) map[string]any {
		if client == nil {
			return map[string]any{"configured": false}
		}
		return map[string]any{
			"configured":   true,
			"mock":         client.IsMock(),
			"expires_soon": client.TokenExpiresSoon(),
		}
	}
	return func(ctx context.Context) map[string]any {
		return map[string]any{
			"real":  status(realClient),
			"paper": status(mockClient),
		}
	}
}
