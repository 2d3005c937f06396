package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	https_server "MarketFlow/api/http"
	"MarketFlow/internal/config"
	"MarketFlow/internal/modules/processor/application/service"
	"MarketFlow/internal/modules/processor/domain/topic"
	"MarketFlow/internal/modules/processor/infrastructure/metrics"
	"MarketFlow/internal/modules/processor/infrastructure/mq/kafka"
	"MarketFlow/internal/modules/processor/infrastructure/transform"
	handler "MarketFlow/internal/modules/processor/interface/http"
	"MarketFlow/pkg/util"
	"MarketFlow/pkg/util/myjwt"
	"MarketFlow/pkg/ws"
	"MarketFlow/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径，默认读取 "+config.EnvPath+" 或 "+config.DefaultPath)
	flag.Parse()

	// 1. 加载配置
	conf, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	config.SetConfig(conf)

	// 2. 初始化日志
	if err := zlog.Init(zlog.Options{
		LogPath:    conf.LogPath,
		Level:      conf.Level,
		MaxSizeMB:  conf.MaxSizeMB,
		MaxBackups: conf.MaxBackups,
		MaxAgeDays: conf.MaxAgeDays,
	}); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Sync()

	if err := run(conf); err != nil {
		zlog.Error("processor exited with error", zap.Error(err))
		_ = zlog.Sync()
		os.Exit(1)
	}
}

func run(conf *config.Config) error {
	version, err := kafka.ParseVersion(conf.Version)
	if err != nil {
		return err
	}
	offset, err := kafka.ParseInitialOffset(conf.InitialOffset)
	if err != nil {
		return err
	}
	acks, err := kafka.ParseRequiredAcks(conf.RequiredAcks)
	if err != nil {
		return err
	}

	// 3. 路由表在启动时一次性校验
	router, err := topic.NewRouter(conf.Topics, transform.Registry())
	if err != nil {
		return fmt.Errorf("invalid topic configuration: %w", err)
	}

	if conf.AutoCreateTopics {
		topics := append(router.InputTopics(), router.OutputTopics()...)
		if err := kafka.EnsureTopics(kafka.TopicAdminConfig{
			Brokers:  conf.Brokers,
			ClientID: util.ClientID(conf.ClientID, "admin"),
			Version:  version,
		}, topics, conf.KafkaConfig.Partitions, conf.Replication); err != nil {
			// 主题可能由运维预先创建，这里只记录
			zlog.Warn("ensure kafka topics failed", zap.Strings("topics", topics), zap.Error(err))
		}
	}

	var m *metrics.ProcessorMetrics
	if conf.MetricsConfig.Enabled {
		if m, err = metrics.New(nil); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	metaClient, err := kafka.NewMetadataClient(kafka.MetadataConfig{
		Brokers:  conf.Brokers,
		ClientID: util.ClientID(conf.ClientID, "metadata"),
		Version:  version,
		Timeout:  conf.MetadataTimeout(),
	})
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}

	fetcher := service.NewMetadataFetcher(metaClient, service.RetryPolicy{
		Attempts: conf.MetadataRetries,
		Delay:    conf.MetadataRetryDelay(),
	}, m)
	factory := kafka.NewFactory(
		kafka.ConsumerConfig{Brokers: conf.Brokers, ClientID: conf.ClientID, Version: version, InitialOffset: offset},
		kafka.PublisherConfig{Brokers: conf.Brokers, ClientID: conf.ClientID, Version: version, RequiredAcks: acks, RetryMax: conf.ProducerRetryMax},
	)
	registry := service.NewRegistry()
	monitor := service.NewPartitionMonitor(router, fetcher, factory, registry, service.MonitorOptions{
		CheckInterval: conf.CheckInterval(),
		Worker:        service.WorkerOptions{PollTimeout: conf.PollTimeout()},
	}, m)
	coordinator := service.NewShutdownCoordinator(context.Background(), registry, conf.JoinTimeout(), fetcher)

	// 4. 启动分区监控，关闭时先等待监控退出
	coordinator.Track("partition monitor", monitor.Done())
	go monitor.Run(coordinator.Context())

	// 5. 启动管理接口
	signer, err := newSigner(conf)
	if err != nil {
		coordinator.Shutdown()
		return err
	}
	if conf.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	hub := ws.NewHub()
	stream := handler.NewStreamHandler(hub, registry, coordinator, signer)
	go stream.Run(coordinator.Context(), conf.StreamInterval())

	opts := https_server.EngineOptions{Host: conf.Host, Port: conf.Port, Stream: stream}
	if conf.MetricsConfig.Enabled {
		opts.MetricsPath = conf.MetricsConfig.Path
		opts.MetricsHandler = promhttp.Handler()
	}
	engine := https_server.NewEngine(handler.NewProcessorHandler(registry, monitor, coordinator), signer, opts)

	addr := fmt.Sprintf("%s:%d", conf.Host, conf.Port)
	srv := &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 10 * time.Second}
	srvErr := make(chan error, 1)
	go func() {
		zlog.Info("admin server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	// 6. 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case sig := <-quit:
		zlog.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case runErr = <-srvErr:
		zlog.Error("admin server failed", zap.Error(runErr))
	}

	// 7. 优雅关闭：先停 worker 并关闭元数据客户端，再停 HTTP
	if abandoned := coordinator.Shutdown(); len(abandoned) > 0 {
		keys := make([]string, 0, len(abandoned))
		for _, k := range abandoned {
			keys = append(keys, k.String())
		}
		zlog.Warn("abandoned partition workers", zap.Strings("partitions", keys))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Warn("admin server shutdown failed", zap.Error(err))
	}
	zlog.Info("processor stopped")
	return runErr
}

func newSigner(conf *config.Config) (*myjwt.Signer, error) {
	key := conf.JwtConfig.Key
	if key == "" {
		key = util.GenerateShortUUID()
		zlog.Warn("jwtConfig.key is empty, using a random key; tokens from admintoken will be rejected")
	}
	return myjwt.NewSigner(key, conf.JwtConfig.Issuer, conf.JwtConfig.ExpireHours)
}
