package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"price_aggregator/internal/app/service"
	dex_client "price_aggregator/internal/client"
	"price_aggregator/internal/infrastructure/configloader"
	chainclient "price_aggregator/internal/infrastructure/network/client"
	"price_aggregator/internal/infrastructure/pricecache"
	"price_aggregator/internal/infrastructure/restapi"
	"price_aggregator/internal/pkg/logger"
	"price_aggregator/internal/pkg/metrics"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
)

const defaultConfigPath = "config/config.yml"

func main() {
	// Предварительный логгер для самой ранней загрузки конфига
	tempZapLogger, errTempLog := zap.NewDevelopment()
	if errTempLog != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to initialize temporary zapLogger: %v\n", errTempLog)
		os.Exit(1)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := configloader.Load(configPath)
	if err != nil {
		tempZapLogger.Fatal("Не удалось загрузить конфигурацию", zap.String("файл", configPath), zap.Error(err))
	}

	zapLogger, errLog := buildZapLogger(cfg.Logging.Level)
	if errLog != nil {
		tempZapLogger.Fatal("Не удалось инициализировать основной zapLogger", zap.Error(errLog))
	}
	defer zapLogger.Sync()

	// Мост slog -> zap: сервисы пишут через slog/port.Logger, вывод через zap.
	slogHandler := slogzap.Option{
		Level:  slogLevel(cfg.Logging.Level),
		Logger: zapLogger,
	}.NewZapHandler()
	slog.SetDefault(slog.New(slogHandler))

	logger.Info("Сервис агрегации цен запускается...", "chain", cfg.Chain.Name)
	appLogger := logger.NewSlogAdapter()

	metrics.MustRegisterMetrics()

	// Блокчейн клиент (V2 router / V3 quoter / ERC20 метаданные)
	evmClient, err := chainclient.NewEVMClient(cfg.Chain, cfg.Contracts)
	if err != nil {
		logger.Fatal("Не удалось подключиться к RPC", "ошибка", err)
	}
	logger.Info("EVM клиент инициализирован", "rpc", cfg.Chain.RPCURL)

	// DexScreener клиент
	dexScreenerTimeout := time.Duration(cfg.DEXScreener.RequestTimeoutMillis) * time.Millisecond
	dexscreenerAPIClient := dex_client.NewDEXScreenerClient(
		cfg.DEXScreener.BaseURL,
		dexScreenerTimeout,
		cfg.DEXScreener.RatePerSecond,
		zapLogger,
	)
	logger.Info("DEXScreenerClient успешно инициализирован.")

	// Ценовое ядро
	fiatConverter := service.NewFiatConverter(cfg.FiatRates)
	quoteEngine := service.NewQuoteEngine(evmClient, cfg.Routing, appLogger)
	ammSource := service.NewAMMPriceService(evmClient, quoteEngine, cfg, fiatConverter, appLogger)
	dexscreenerSource := service.NewDexScreenerSource(
		dexscreenerAPIClient,
		cfg.DEXScreener.ChainID,
		dexScreenerTimeout,
		fiatConverter,
		appLogger,
	)
	aggregator := service.NewPriceAggregatorService(ammSource, dexscreenerSource, evmClient, quoteEngine, appLogger)
	logger.Info("PriceAggregatorService успешно инициализирован.")

	resultCache := pricecache.New(time.Duration(cfg.Cache.TTLSeconds)*time.Second, appLogger)

	// HTTP API
	priceHandler := restapi.NewPriceHandler(aggregator, resultCache, fiatConverter, cfg, appLogger)
	ginRouter := restapi.SetupRouter(priceHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      ginRouter,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Info("Запуск HTTP сервера", "адрес", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Не удалось запустить HTTP сервер", "ошибка", err)
		}
	}()

	logger.Info("Приложение работает. HTTP API доступен. Нажмите Ctrl+C для завершения.")

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-signalChan

	logger.Info("Получен сигнал завершения. Завершение работы HTTP сервера...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка при Graceful Shutdown HTTP сервера", "ошибка", err)
	} else {
		logger.Info("HTTP сервер успешно остановлен.")
	}

	logger.Info("Сервис агрегации цен остановлен.")
}

func buildZapLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
