package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bike-order-form/internal/domain/order"
	"github.com/xenking/bike-order-form/internal/domain/rate"
	"github.com/xenking/bike-order-form/internal/handler"
	"github.com/xenking/bike-order-form/internal/kurzy"
	"github.com/xenking/bike-order-form/internal/rates"
	"github.com/xenking/bike-order-form/internal/session"
	"github.com/xenking/bike-order-form/internal/storage/memory"
	"github.com/xenking/bike-order-form/pkg/health"
	"github.com/xenking/bike-order-form/pkg/httpmiddleware"
)

const serviceName = "orderform"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// Catalog compiled into the binary.
	products, err := memory.DefaultProductRepository()
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}

	// Exchange rates: fetched once in the background, read lazily.
	loader := rates.NewLoader(newRateProvider(cfg.Rates, m))

	// Domain service and per-visitor view state.
	orderService := order.NewService(products, loader)
	sessions := session.NewStore(orderService.NewController, cfg.Session.TTL)
	sessions.StartCleanup(ctx)

	meter := m.MeterProvider().Meter(serviceName)
	if _, err := meter.Int64ObservableGauge("orderform.sessions.active",
		metric.WithDescription("Order form views held in memory"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(sessions.Len()))
			return nil
		}),
	); err != nil {
		return errors.Wrap(err, "create sessions gauge")
	}

	h, err := handler.NewHandler(handler.HandlerConfig{
		CookieName:   cfg.Session.CookieName,
		SecureCookie: cfg.Session.Secure,
		SessionTTL:   cfg.Session.TTL,
	}, orderService, sessions, meter)
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	// Health checks. The rate feed is informational: a failed fetch degrades
	// conversions to 1:1 and must not take the form offline.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCPauseCheck(time.Second))
	healthSvc.AddReadinessCheck("catalog", time.Second, func(ctx context.Context) error {
		list, err := products.List(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return errors.New("catalog is empty")
		}
		return nil
	})
	healthSvc.AddInfoCheck("rates", time.Second, loader.Check)
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	routeFinder := httpmiddleware.MakeRouteFinder(mux)
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				PathPrefix:    "/api/",
				AllowOrigins:  cfg.CORS.Origins,
				AllowHeaders:  []string{"Content-Type", httpmiddleware.RequestIDHeader},
				ExposeHeaders: []string{httpmiddleware.RequestIDHeader, "X-RateLimit-Remaining", "Retry-After"},
				MaxAge:        86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loader.Load(gCtx)
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		defer healthSvc.Stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})

	return g.Wait()
}

// newRateProvider reads a local snapshot when one is configured and the
// live feed otherwise. Feed requests are traced like inbound ones.
func newRateProvider(cfg RatesConfig, m *app.Telemetry) rate.Provider {
	if cfg.Snapshot != "" {
		return rates.NewSnapshot(cfg.Snapshot)
	}
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}
	return kurzy.NewClient(cfg.URL, client)
}
