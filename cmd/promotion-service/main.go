// cmd/promotion-service/main.go
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
	"tomatomall/internal/pkg/worker"
	"tomatomall/internal/service/promotion/application"
	"tomatomall/internal/service/promotion/infrastructure"
	"tomatomall/internal/service/promotion/infrastructure/rule"
	"tomatomall/internal/service/promotion/interfaces"
	"tomatomall/internal/zookeeper"
)

const (
	serviceName = "promotion-service"
	servicePort = 8087
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
		if err := db.AutoMigrate(&infrastructure.CouponTemplateModel{}, &infrastructure.CouponModel{}); err != nil {
			lg.Fatal().Err(err).Msg("failed to migrate schema")
		}
	}

	rules, err := rule.NewCELRuleEngine()
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to initialize rule engine")
	}
	svc := application.NewPromotionService(
		infrastructure.NewGormCouponRepository(db),
		infrastructure.NewGormTemplateRepository(db),
		rules,
		database.NewTxManager(db),
		otel.Tracer(serviceName),
	)

	expiry := &worker.Periodic{
		Name:     "coupon-template-expiry",
		Interval: cfg.App.Promotion.ExpirySweepInterval,
		Task: func(ctx context.Context) error {
			_, err := svc.ExpireTemplates(ctx)
			return err
		},
	}
	var zkConn interface{ Close() }
	if len(cfg.Infra.Zookeeper.Servers) > 0 {
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			lg.Fatal().Err(err).Msg("failed to connect zookeeper")
		}
		expiry.Locker = zookeeper.NewLocker(conn)
		zkConn = conn
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			interfaces.NewPromotionHandler(svc).RegisterRoutes(appCtx.Mux)
		},
		Workers: []bootstrap.Worker{expiry.Run},
		Cleanup: func(ctx context.Context) {
			if zkConn != nil {
				zkConn.Close()
			}
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	})
}
