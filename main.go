package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	inventoryapp "energytrade-cloud/internal/inventory/application"
	inventoryrepo "energytrade-cloud/internal/inventory/infrastructure/postgres"
	inventoryhttp "energytrade-cloud/internal/inventory/interfaces/http"
	"energytrade-cloud/internal/ledger"
	limitsapp "energytrade-cloud/internal/limits/application"
	limitsrepo "energytrade-cloud/internal/limits/infrastructure/postgres"
	limitshttp "energytrade-cloud/internal/limits/interfaces/http"
	"energytrade-cloud/internal/observability/metrics"
	settlementapp "energytrade-cloud/internal/settlement/application"
	settlementrepo "energytrade-cloud/internal/settlement/infrastructure/postgres"
	settlementinterfaces "energytrade-cloud/internal/settlement/interfaces"
	settlementhttp "energytrade-cloud/internal/settlement/interfaces/http"
	settlementmetrics "energytrade-cloud/internal/settlement/metrics"
	settlementnotify "energytrade-cloud/internal/settlement/notify"
	"energytrade-cloud/internal/tradingrules"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	ledgerClient, err := ledger.NewClient(cfg.LedgerBaseURL, cfg.PlatformID, []byte(cfg.LedgerJWTSecret), logger,
		ledger.WithTimeout(cfg.LedgerTimeout),
		ledger.WithMaxAttempts(cfg.LedgerMaxAttempts),
		ledger.WithBaseDelay(cfg.LedgerRetryDelay),
	)
	if err != nil {
		logger.Fatalf("ledger client error: %v", err)
	}

	inventoryService, err := inventoryapp.NewService(inventoryrepo.NewItemRepository(db), logger)
	if err != nil {
		logger.Fatalf("inventory service error: %v", err)
	}
	inventoryHandler, err := inventoryhttp.NewHandler(inventoryService)
	if err != nil {
		logger.Fatalf("inventory handler error: %v", err)
	}

	var rules tradingrules.Provider
	if cfg.TradingRulesFile != "" {
		rules = tradingrules.NewFileProvider(cfg.TradingRulesFile)
	} else {
		rules = tradingrules.NewPostgresProvider(db)
	}
	validator, err := limitsapp.NewValidator(rules, limitsrepo.NewProfileRepository(db), limitsrepo.NewCommitmentRepository(db), logger)
	if err != nil {
		logger.Fatalf("limit validator error: %v", err)
	}
	limitsHandler, err := limitshttp.NewHandler(validator)
	if err != nil {
		logger.Fatalf("limits handler error: %v", err)
	}

	settlementStore, err := settlementapp.NewStore(settlementrepo.NewSettlementRepository(db), logger)
	if err != nil {
		logger.Fatalf("settlement store error: %v", err)
	}
	var notifier settlementnotify.Notifier
	if cfg.OnSettleWebhookURL != "" {
		notifier = settlementnotify.NewWebhookNotifier(cfg.OnSettleWebhookURL)
	}
	poller, err := settlementapp.NewPoller(settlementStore, ledgerClient, notifier, settlementmetrics.New(), logger,
		settlementapp.WithInterval(cfg.PollInterval),
		settlementapp.WithEnabled(cfg.PollEnabled),
	)
	if err != nil {
		logger.Fatalf("settlement poller error: %v", err)
	}
	poller.Start(context.Background())
	defer poller.Stop()

	settlementHandler, err := settlementhttp.NewHandler(settlementStore, poller)
	if err != nil {
		logger.Fatalf("settlement handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/inventory", inventoryHandler)
	mux.Handle("/api/v1/limits/validate", limitsHandler)
	mux.Handle("/api/v1/settlements", settlementHandler)
	mux.Handle("/api/v1/settlements/refresh", settlementHandler)
	mux.Handle("/api/v1/settlements/poll", settlementHandler)
	mux.Handle("/api/v1/exports/cycle-report", settlementinterfaces.NewCycleReportHandler(settlementStore))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL        string
	HTTPAddr           string
	PlatformID         string
	LedgerBaseURL      string
	LedgerJWTSecret    string
	LedgerTimeout      time.Duration
	LedgerMaxAttempts  int
	LedgerRetryDelay   time.Duration
	PollInterval       time.Duration
	PollEnabled        bool
	OnSettleWebhookURL string
	TradingRulesFile   string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		PlatformID:         getenvDefault("PLATFORM_ID", "platform-demo"),
		LedgerBaseURL:      getenvDefault("LEDGER_BASE_URL", ""),
		LedgerJWTSecret:    getenvDefault("LEDGER_JWT_SECRET", ""),
		LedgerTimeout:      getenvDuration("LEDGER_TIMEOUT", 10*time.Second),
		LedgerMaxAttempts:  getenvIntDefault("LEDGER_MAX_ATTEMPTS", 3),
		LedgerRetryDelay:   getenvDuration("LEDGER_RETRY_DELAY", 500*time.Millisecond),
		PollInterval:       getenvDuration("SETTLEMENT_POLL_INTERVAL", time.Minute),
		PollEnabled:        getenvBoolDefault("SETTLEMENT_POLL_ENABLED", true),
		OnSettleWebhookURL: getenvDefault("ON_SETTLE_WEBHOOK_URL", ""),
		TradingRulesFile:   getenvDefault("TRADING_RULES_FILE", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.LedgerBaseURL == "" {
		log.Fatal("LEDGER_BASE_URL is required")
	}
	if cfg.LedgerJWTSecret == "" {
		log.Fatal("LEDGER_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
