// cmd/order-service/main.go
package main

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"tomatomall/internal/pkg/bootstrap"
	"tomatomall/internal/pkg/database"
	"tomatomall/internal/pkg/logger"
	"tomatomall/internal/pkg/metrics"
	"tomatomall/internal/pkg/mq"
	"tomatomall/internal/pkg/redis"
	"tomatomall/internal/pkg/retry"
	"tomatomall/internal/pkg/worker"
	invapp "tomatomall/internal/service/inventory/application"
	invinfra "tomatomall/internal/service/inventory/infrastructure"
	"tomatomall/internal/service/order/application"
	"tomatomall/internal/service/order/domain/port"
	"tomatomall/internal/service/order/infrastructure"
	"tomatomall/internal/service/order/infrastructure/adapter"
	"tomatomall/internal/service/order/interfaces"
	promoapp "tomatomall/internal/service/promotion/application"
	promoinfra "tomatomall/internal/service/promotion/infrastructure"
	"tomatomall/internal/service/promotion/infrastructure/rule"
	"tomatomall/internal/zookeeper"
)

const (
	serviceName = "order-service"
	servicePort = 8080
	// 同一笔支付通知的处理占位时长
	notifyGuardTTL = 30 * time.Second
)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(serviceName, cfg.App.LogLevel)
	metrics.MustRegister(prometheus.DefaultRegisterer)
	ctx := context.Background()
	lg := logger.Ctx(ctx)

	// 1. 数据库
	db, err := database.Open(cfg.Infra.Database)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to open database")
	}
	if cfg.Infra.Database.AutoMigrate {
		if err := migrate(db); err != nil {
			lg.Fatal().Err(err).Msg("failed to migrate schema")
		}
	}
	tracer := otel.Tracer(serviceName)
	txm := database.NewTxManager(db)

	// 2. 进程内的库存账本与优惠服务，与订单共用同一个数据库事务
	ledger := invapp.NewStockLedger(invinfra.NewGormStockRepository(db), tracer)
	rules, err := rule.NewCELRuleEngine()
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to initialize rule engine")
	}
	promotions := promoapp.NewPromotionService(
		promoinfra.NewGormCouponRepository(db),
		promoinfra.NewGormTemplateRepository(db),
		rules, txm, tracer,
	)

	gateway, err := adapter.NewAlipayGateway(cfg.App.Alipay)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to initialize alipay gateway")
	}

	deps := application.Dependencies{
		Repo:     infrastructure.NewGormOrderRepository(db),
		Tx:       txm,
		Ledger:   ledger,
		Cart:     adapter.NewGormCart(db),
		Coupons:  adapter.NewPromotionCouponAdapter(promotions),
		Accounts: adapter.NewGormAccount(db),
		Gateway:  gateway,
		Tracer:   tracer,
	}

	// 3. Redis：商品缓存与支付通知去重，未配置时退化为直接读库
	catalog := adapter.NewGormCatalog(db, ledger)
	deps.Catalog = catalog
	var (
		guard       port.DedupGuard
		redisClient *redis.Client
	)
	if len(cfg.Infra.Redis.Addrs) > 0 {
		redisClient, err = redis.NewClient(ctx, cfg.Infra.Redis)
		if err != nil {
			lg.Fatal().Err(err).Msg("failed to initialize redis client")
		}
		deps.Catalog = adapter.NewCachedCatalog(catalog, redisClient.GetClient(), cfg.Infra.Redis.CacheTTL)
		g, err := redis.NewGuard(redisClient, "tomato_mall:notify:", notifyGuardTTL)
		if err != nil {
			lg.Fatal().Err(err).Msg("failed to initialize callback guard")
		}
		guard = g
	}

	// 4. Kafka：订单生命周期事件
	var closeWriter func() error
	if len(cfg.Infra.Kafka.Brokers) > 0 {
		writer := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.OrderTopic)
		deps.Notifier = adapter.NewOrderEventKafkaAdapter(writer)
		closeWriter = writer.Close
	}

	stockPolicy := invapp.CommitPolicy(retry.Policy{
		MaxAttempts:    cfg.App.Settlement.CommitMaxAttempts,
		InitialBackoff: cfg.App.Settlement.CommitInitialBackoff,
		MaxBackoff:     cfg.App.Settlement.CommitMaxBackoff,
		Multiplier:     cfg.App.Settlement.CommitMultiplier,
	})
	orders := application.NewOrderApplicationService(deps, application.Options{
		TomatoRate:  cfg.App.Order.TomatoRate,
		StockPolicy: stockPolicy,
	})
	settlement := application.NewSettlementService(deps, guard, stockPolicy)
	sweeper := application.NewReclamationSweeper(deps, cfg.App.Order.PendingWindow, cfg.App.Order.SweepBatchSize)

	// 5. 超时回收任务，多副本时用 ZooKeeper 锁保证单实例执行
	sweep := &worker.Periodic{
		Name:     "order-reclamation",
		Interval: cfg.App.Order.SweepInterval,
		Task:     sweeper.Run,
	}
	var zkConn interface{ Close() }
	if len(cfg.Infra.Zookeeper.Servers) > 0 {
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			lg.Fatal().Err(err).Msg("failed to connect zookeeper")
		}
		sweep.Locker = zookeeper.NewLocker(conn)
		zkConn = conn
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			interfaces.NewOrderHandler(orders, settlement).RegisterRoutes(appCtx.Mux)
		},
		Workers: []bootstrap.Worker{sweep.Run},
		Cleanup: func(ctx context.Context) {
			if closeWriter != nil {
				if err := closeWriter(); err != nil {
					logger.Ctx(ctx).Error().Err(err).Msg("error closing kafka writer")
				}
			}
			if redisClient != nil {
				_ = redisClient.Close()
			}
			if zkConn != nil {
				zkConn.Close()
			}
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	})
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&invinfra.StockRecordModel{},
		&promoinfra.CouponTemplateModel{},
		&promoinfra.CouponModel{},
		&infrastructure.ProductModel{},
		&infrastructure.CartItemModel{},
		&infrastructure.AccountModel{},
		&infrastructure.OrderModel{},
		&infrastructure.LineReservationModel{},
	)
}
