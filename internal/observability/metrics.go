package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sandeepkv93/alumni-portal-client/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const instrumentationName = "github.com/sandeepkv93/alumni-portal-client"

type AppMetrics struct {
	authLoginCounter    metric.Int64Counter
	authRefreshCounter  metric.Int64Counter
	authLogoutCounter   metric.Int64Counter
	unauthorizedCounter metric.Int64Counter
	storageOpCounter    metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		if err := registerAppMetrics(mp.Meter(instrumentationName)); err != nil {
			return nil, err
		}
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	if err := registerAppMetrics(mp.Meter(instrumentationName)); err != nil {
		return nil, err
	}
	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func registerAppMetrics(meter metric.Meter) error {
	loginCounter, err := meter.Int64Counter("auth.login.attempts")
	if err != nil {
		return err
	}
	refreshCounter, err := meter.Int64Counter("auth.refresh.attempts")
	if err != nil {
		return err
	}
	logoutCounter, err := meter.Int64Counter("auth.logout.attempts")
	if err != nil {
		return err
	}
	unauthorizedCounter, err := meter.Int64Counter("http.client.unauthorized")
	if err != nil {
		return err
	}
	storageCounter, err := meter.Int64Counter("storage.operations")
	if err != nil {
		return err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		authLoginCounter:    loginCounter,
		authRefreshCounter:  refreshCounter,
		authLogoutCounter:   logoutCounter,
		unauthorizedCounter: unauthorizedCounter,
		storageOpCounter:    storageCounter,
	}
	metricsMu.Unlock()
	return nil
}

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

// RecordAuthLogin counts login and signup attempts; kind is login, admin_login or signup.
func RecordAuthLogin(ctx context.Context, kind, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

func RecordAuthRefresh(ctx context.Context, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authRefreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthLogout(ctx context.Context, scope, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authLogoutCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("status", status),
	))
}

// RecordUnauthorizedResponse tracks what happened to a 401: retried,
// passthrough, not_replayable or session_expired.
func RecordUnauthorizedResponse(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.unauthorizedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordStorageOperation(ctx context.Context, store, operation, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.storageOpCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}
