package main

import (
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/db"
	"storefront/internal/payments"
	"storefront/internal/ratelimiter"
	"storefront/internal/store"
)

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	// Default values
	defaultRequests := 200
	defaultEnabled := false

	// Retrieve request count with error handling
	requestsPerTimeFrame := defaultRequests
	if val, exists := os.LookupEnv("RATELIMITER_REQUESTS_COUNT"); exists {
		if parsedVal, err := strconv.Atoi(val); err == nil {
			requestsPerTimeFrame = parsedVal
		} else {
			fmt.Println("Invalid RATELIMITER_REQUESTS_COUNT, defaulting to", defaultRequests)
		}
	}

	// Retrieve enabled flag with error handling
	enabled := defaultEnabled
	if val, exists := os.LookupEnv("RATE_LIMITER_ENABLED"); exists {
		if parsedVal, err := strconv.ParseBool(val); err == nil {
			enabled = parsedVal
		} else {
			fmt.Println("Invalid RATE_LIMITER_ENABLED, defaulting to", defaultEnabled)
		}
	}

	return ratelimiter.Config{
		RequestsPerTimeFrame: requestsPerTimeFrame,
		TimeFrame:            5 * time.Second,
		Enabled:              enabled,
	}
}

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	level := zapcore.InfoLevel

	core := zapcore.NewCore(consoleEncoder, zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout)), level)

	logger := zap.New(core)

	return logger.Sugar(), nil
}

func envString(key, fallback string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Fatalf("Invalid value for %s: %v", key, err)
	}
	return d
}

var version = "1.0.0"

// buildCartStores picks the cart and intent persistence. The memory
// backend never touches the pool, so it works with no database at all.
func buildCartStores(backend string, pool *pgxpool.Pool) (cart.Store, checkout.IntentStore) {
	if backend == "memory" || pool == nil {
		return cart.NewMemoryStore(), checkout.NewMemoryIntentStore()
	}
	return cart.NewRepository(pool), checkout.NewIntentRepository(pool)
}

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	maxConnsStr := envString("DB_MAX_CONNS", "30")
	maxConns, err := strconv.Atoi(maxConnsStr)
	if err != nil {
		log.Fatalf("Invalid value for DB_MAX_CONNS: %v", err)
	}

	cfg := config{
		addr:        envString("ADDR", ":8080"),
		env:         envString("ENV", "development"),
		frontendURL: envString("FRONTEND_URL", "http://localhost:5173"),
		apiURL:      envString("EXTERNAL_URL", "http://localhost"),
		db: dbConfig{
			addr:        os.Getenv("DB_ADDR"),
			maxConns:    int32(maxConns),
			maxIdleTime: envString("DB_MAX_IDLE_TIME", "15m"),
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
			token: tokenConfig{
				secret:        os.Getenv("AUTH_TOKEN_SECRET"),
				refreshSecret: os.Getenv("AUTH_TOKEN_REFRESH_SECRET"),
				accessExp:     envDuration("AUTH_ACCESS_TOKEN_EXP", time.Hour*24),
				refreshExp:    envDuration("AUTH_REFRESH_TOKEN_EXP", time.Hour*24*9),
				iss:           "storefront",
			},
		},
		checkout: checkoutConfig{
			currency:        envString("CHECKOUT_CURRENCY", "USD"),
			pendingTimeout:  envDuration("CHECKOUT_PENDING_TIMEOUT", 15*time.Minute),
			callbackGrace:   envDuration("CHECKOUT_CALLBACK_GRACE", 2*time.Minute),
			expireInterval:  envDuration("CHECKOUT_EXPIRE_INTERVAL", time.Minute),
			referenceSecret: envString("CHECKOUT_REFERENCE_SECRET", "dev-reference-secret"),
			backend:         envString("CART_BACKEND", "postgres"),
		},
		payment: paymentConfig{
			paypal: paypalConfig{
				clientID:  os.Getenv("PAYPAL_CLIENT_ID"),
				secret:    os.Getenv("PAYPAL_SECRET"),
				baseURL:   envString("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
				returnURL: os.Getenv("PAYPAL_RETURN_URL"),
				cancelURL: os.Getenv("PAYPAL_CANCEL_URL"),
			},
			mpesa: mpesaConfig{
				shortCode:   os.Getenv("MPESA_SHORT_CODE"),
				passKey:     os.Getenv("MPESA_PASS_KEY"),
				baseURL:     envString("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
				callbackURL: os.Getenv("MPESA_CALLBACK_URL"),
			},
		},
		rateLimiter: LoadRateLimiterConfig(),
	}

	// Logger
	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	// Database. Memory mode runs without one when DB_ADDR is unset; the
	// collaborator stores (users/products/categories) then stay offline.
	var pool *pgxpool.Pool
	if cfg.checkout.backend != "memory" || cfg.db.addr != "" {
		pool, err = db.New(
			cfg.db.addr,
			cfg.db.maxConns,
			cfg.db.maxIdleTime,
		)
		if err != nil {
			logger.Fatal(err)
		}

		defer pool.Close()
		logger.Info("database connection pool established")
	}

	// storage
	var storage store.Storage
	if pool != nil {
		storage = store.NewStorage(pool)
	} else {
		logger.Warn("no database configured, collaborator stores disabled")
	}

	// Cart and intent persistence. The memory backend keeps carts and
	// payment intents in process, matching deployments where carts are
	// session-scoped and disposable.
	cartStore, intentStore := buildCartStores(cfg.checkout.backend, pool)
	if cfg.checkout.backend == "memory" {
		logger.Info("using in-memory cart and intent stores")
	}

	carts := cart.NewService(cartStore)

	// Payment gateways
	gateways := payments.NewManager()
	gateways.Register(payments.NewPayPalAdapter(
		cfg.payment.paypal.clientID,
		cfg.payment.paypal.secret,
		cfg.payment.paypal.baseURL,
		cfg.payment.paypal.returnURL,
		cfg.payment.paypal.cancelURL,
	))
	gateways.Register(payments.NewMpesaAdapter(
		cfg.payment.mpesa.shortCode,
		cfg.payment.mpesa.passKey,
		cfg.payment.mpesa.baseURL,
		cfg.payment.mpesa.callbackURL,
	))

	orchestrator := checkout.NewOrchestrator(
		checkout.Config{
			Currency:       cfg.checkout.currency,
			PendingTimeout: cfg.checkout.pendingTimeout,
			CallbackGrace:  cfg.checkout.callbackGrace,
		},
		carts,
		gateways,
		intentStore,
		checkout.NewReferenceGenerator(cfg.checkout.referenceSecret),
		logger,
	)

	// Rate limiter
	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)

	// Authenticator
	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.refreshSecret,
		cfg.auth.token.iss,
		cfg.auth.token.iss,
		cfg.auth.token.accessExp,
		cfg.auth.token.refreshExp,
	)

	app := &application{
		config:        cfg,
		logger:        logger,
		store:         storage,
		carts:         carts,
		checkout:      orchestrator,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
	}

	app.expireStalePaymentsEvery(cfg.checkout.expireInterval)

	// Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(func() any {
		if pool == nil {
			return nil
		}
		s := pool.Stat()
		return map[string]any{
			"total_conns":    s.TotalConns(),
			"idle_conns":     s.IdleConns(),
			"acquired_conns": s.AcquiredConns(),
		}
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
