// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"tomatomall/internal/pkg/logger"
	"tomatomall/internal/pkg/nacos"
	"tomatomall/internal/pkg/tracing"
	"tomatomall/internal/pkg/utils"
)

type AppCtx struct {
	Mux    *http.ServeMux
	Config *Config
	Nacos  *nacos.Client
}

// Worker 是与 HTTP 服务同生命周期的后台任务，ctx 结束时应返回
type Worker func(ctx context.Context) error

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// RegisterHandlers 允许每个服务注册自己独特的 HTTP 路由
	RegisterHandlers func(appCtx AppCtx)
	Workers          []Worker
	// Cleanup 在 HTTP 服务关闭之后调用，用于关闭数据库、Kafka 等资源
	Cleanup func(ctx context.Context)
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()
	log := logger.Ctx(context.Background())

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 2. 服务注册（未配置 Nacos 时跳过）
	var (
		namingClient *nacos.Client
		ip           string
	)
	if cfg.Infra.Nacos.ServerAddrs != "" {
		namingClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		if ip, err = utils.GetOutboundIP(); err != nil {
			log.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	// 3. HTTP 路由
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", promhttp.Handler())
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Config: cfg, Nacos: namingClient})
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 4. 运行 HTTP 服务与后台任务，直到收到退出信号或任一任务失败
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = serve(ctx, lifecycle{
		listen: func() error {
			log.Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("listening")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
		shutdown: func(shutdownCtx context.Context) {
			log.Info().Str("service", info.ServiceName).Msg("shutting down")
			if namingClient != nil {
				if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
					log.Error().Err(err).Msg("error deregistering from nacos")
				}
			}
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("error shutting down http server")
			}
		},
		workers: info.Workers,
		cleanup: func(shutdownCtx context.Context) {
			if info.Cleanup != nil {
				info.Cleanup(shutdownCtx)
			}
			// 最后关闭 Tracer Provider，确保关停过程中的 span 也被导出
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("error shutting down tracer provider")
			}
		},
		timeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatal().Err(err).Str("service", info.ServiceName).Msg("service exited with error")
	}
	log.Info().Str("service", info.ServiceName).Msg("gracefully shut down")
}

type lifecycle struct {
	listen   func() error
	shutdown func(ctx context.Context)
	workers  []Worker
	cleanup  func(ctx context.Context)
	timeout  time.Duration
}

// serve 在 ctx 结束或任一任务失败后按顺序关停：先停止接收请求，再等后台任务全部返回，最后释放资源。
// 后台任务在关停超时前仍未返回时直接进入清理。
func serve(ctx context.Context, lc lifecycle) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(lc.listen)

	var workers sync.WaitGroup
	for _, w := range lc.workers {
		w := w
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			return w(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), lc.timeout)
		defer cancel()

		if lc.shutdown != nil {
			lc.shutdown(shutdownCtx)
		}
		done := make(chan struct{})
		go func() {
			workers.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Ctx(ctx).Warn().Msg("background workers did not stop before shutdown timeout")
		}
		if lc.cleanup != nil {
			lc.cleanup(shutdownCtx)
		}
		return nil
	})
	return g.Wait()
}
