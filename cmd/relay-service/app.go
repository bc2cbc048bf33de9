package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/logger"
	"relay/internal/relay"
	"relay/internal/stream"
	"relay/pkg/bootstrap"
	"relay/pkg/health"
	"relay/pkg/logging"
	"relay/pkg/metrics"
	"relay/pkg/middleware"
	"relay/pkg/models"
	"relay/pkg/ratelimit"
	"relay/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	service        *relay.Service
	limiter        *ratelimit.Limiter
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base: bootstrap.NewBase(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterPipelineMetrics()
	metrics.RegisterStreamMetrics()
	if a.Config.Source.Enabled {
		metrics.RegisterSourceMetrics()
	}
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}
	if a.Config.API.RateLimit.Enabled {
		metrics.RegisterAPIMetrics()
	}

	if err := a.InitStream(ctx); err != nil {
		return fmt.Errorf("failed to initialize stream: %w", err)
	}

	svc, err := relay.NewService(a.Config.Pipeline, a.Config.Stream.Name, a.Writer, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create relay service: %w", err)
	}
	a.service = svc

	if err := a.InitSource(); err != nil {
		return fmt.Errorf("failed to initialize source: %w", err)
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RecoveryMiddleware(a.Logger))

	if rl := a.Config.API.RateLimit; rl.Enabled {
		a.limiter = ratelimit.New(ratelimit.Config{
			RPS:             rl.RPS,
			Burst:           rl.Burst,
			CleanupInterval: time.Duration(rl.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(rl.MaxAge) * time.Second,
		})
		router.Use(a.limiter.Middleware())
	}

	relay.NewHandler(a.service, a.Logger).RegisterRoutes(router)

	healthRegistry := a.healthRegistry()
	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
}

func (a *App) healthRegistry() *health.CheckerRegistry {
	registry := health.NewCheckerRegistry()

	switch a.Config.Stream.Type {
	case constants.StreamTypeKafka:
		registry.Register(health.NewKafkaChecker("stream-kafka", a.Config.Stream.Kafka.Brokers))
	case constants.StreamTypeRedis:
		if a.Redis != nil {
			registry.Register(health.NewRedisChecker(a.Redis))
		}
	}

	if a.Config.Source.Enabled {
		registry.Register(health.NewKafkaChecker("source-kafka", a.Config.Source.Kafka.Brokers))
	}

	if bw, ok := a.Writer.(*stream.BreakerWriter); ok {
		registry.Register(health.NewCircuitBreakerChecker("stream-circuit-breaker", bw.State))
	}

	return registry
}

func (a *App) Run(ctx context.Context) error {
	ctx = logging.WithServiceName(ctx, constants.ServiceName)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.limiter != nil {
		g.Go(func() error {
			a.limiter.RunCleanup(gCtx)
			return nil
		})
	}

	if a.Consumer != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "Starting source consumer",
				"topic", a.Config.Source.Kafka.Topic,
			)
			return a.Consumer.Consume(gCtx, a.handleSourceBatch)
		})
	}

	return g.Wait()
}

func (a *App) handleSourceBatch(ctx context.Context, batch []models.InboundMessage) models.BatchOutcome {
	return a.service.HandleBatch(ctx, relay.TriggerSource, batch)
}

func (a *App) Shutdown(ctx context.Context) error {
	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
