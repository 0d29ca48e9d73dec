// cmd/inventory-service/main.go
package main

import (
	"context"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"tomatomall/internal/pkg/bootstrap"
	"tomatomall/internal/pkg/database"
	"tomatomall/internal/pkg/logger"
	"tomatomall/internal/pkg/metrics"
	"tomatomall/internal/service/inventory/application"
	"tomatomall/internal/service/inventory/infrastructure"
	"tomatomall/internal/service/inventory/interfaces"
)

const (
	serviceName = "inventory-service"
	servicePort = 8082
)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(serviceName, cfg.App.LogLevel)
	metrics.MustRegister(prometheus.DefaultRegisterer)
	lg := logger.Ctx(context.Background())

	db, err := database.Open(cfg.Infra.Database)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to open database")
	}
	if cfg.Infra.Database.AutoMigrate {
		if err := db.AutoMigrate(&infrastructure.StockRecordModel{}); err != nil {
			lg.Fatal().Err(err).Msg("failed to migrate schema")
		}
	}

	ledger := application.NewStockLedger(infrastructure.NewGormStockRepository(db), otel.Tracer(serviceName))

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			interfaces.NewStockHandler(ledger).RegisterRoutes(appCtx.Mux)
		},
		Cleanup: func(ctx context.Context) {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	})
}
