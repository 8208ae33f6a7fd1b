package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/ratelimiter"
	"storefront/internal/store"
)

type application struct {
	config        config
	store         store.Storage
	carts         *cart.Service
	checkout      *checkout.Orchestrator
	logger        *zap.SugaredLogger
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
}

type config struct {
	addr        string
	env         string
	apiURL      string
	frontendURL string
	db          dbConfig
	auth        authConfig
	checkout    checkoutConfig
	payment     paymentConfig
	rateLimiter ratelimiter.Config
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type basicConfig struct {
	user string
	pass string
}

type tokenConfig struct {
	secret        string
	refreshSecret string
	accessExp     time.Duration
	refreshExp    time.Duration
	iss           string
}

type checkoutConfig struct {
	currency        string
	pendingTimeout  time.Duration
	callbackGrace   time.Duration
	expireInterval  time.Duration
	referenceSecret string
	backend         string
}

type paymentConfig struct {
	paypal paypalConfig
	mpesa  mpesaConfig
}

type paypalConfig struct {
	clientID  string
	secret    string
	baseURL   string
	returnURL string
	cancelURL string
}

type mpesaConfig struct {
	shortCode   string
	passKey     string
	baseURL     string
	callbackURL string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{app.config.frontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Cart-Session"},
		ExposedHeaders:   []string{"X-Cart-Session"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)
	})

	r.Group(func(r chi.Router) {
		r.Use(app.RateLimiterMiddleware)

		r.Route("/api", func(r chi.Router) {
			r.Post("/register", app.registerUserHandler)
			r.Post("/login", app.loginUserHandler)
			r.Post("/refresh", app.refreshTokenHandler)
			r.With(app.AuthTokenMiddleware).Get("/protected_route", app.protectedRouteHandler)

			r.Post("/add_product", app.createProductHandler)
			r.Get("/get_product", app.getProductsHandler)
			r.Put("/update/{id}", app.updateProductHandler)
			r.Delete("/delete/{id}", app.deleteProductHandler)

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", app.getCategoriesHandler)
				r.Post("/", app.createCategoryHandler)
				r.Put("/{id}", app.updateCategoryHandler)
				r.Delete("/{id}", app.deleteCategoryHandler)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Use(app.CartSessionMiddleware)
				r.Post("/add", app.addToCartHandler)
				r.Delete("/remove/{id}", app.removeFromCartHandler)
				r.Put("/update/{id}", app.updateCartItemHandler)
			})
		})

		r.With(app.CartSessionMiddleware).Get("/cart", app.getCartHandler)
		r.With(app.CartSessionMiddleware).Post("/{provider}/payments", app.checkoutHandler)
		r.Post("/{provider}/callback", app.paymentCallbackHandler)
		r.Get("/reports", app.reportsHandler)
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
