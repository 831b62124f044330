// Package main 外汇资金风险引擎启动入口
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	approvalapp "github.com/wyfcoding/fxtreasury/internal/approval/application"
	approvaldomain "github.com/wyfcoding/fxtreasury/internal/approval/domain"
	approvalinfra "github.com/wyfcoding/fxtreasury/internal/approval/infrastructure"
	approvalhttp "github.com/wyfcoding/fxtreasury/internal/approval/interfaces/http"
	auditdomain "github.com/wyfcoding/fxtreasury/internal/auditing/domain"
	auditinfra "github.com/wyfcoding/fxtreasury/internal/auditing/infrastructure"
	audithttp "github.com/wyfcoding/fxtreasury/internal/auditing/interfaces/http"
	classapp "github.com/wyfcoding/fxtreasury/internal/classification/application"
	classdomain "github.com/wyfcoding/fxtreasury/internal/classification/domain"
	classinfra "github.com/wyfcoding/fxtreasury/internal/classification/infrastructure"
	classhttp "github.com/wyfcoding/fxtreasury/internal/classification/interfaces/http"
	decompapp "github.com/wyfcoding/fxtreasury/internal/decomposition/application"
	decompdomain "github.com/wyfcoding/fxtreasury/internal/decomposition/domain"
	decompinfra "github.com/wyfcoding/fxtreasury/internal/decomposition/infrastructure"
	decomphttp "github.com/wyfcoding/fxtreasury/internal/decomposition/interfaces/http"
	hedgeapp "github.com/wyfcoding/fxtreasury/internal/hedge/application"
	hedgedomain "github.com/wyfcoding/fxtreasury/internal/hedge/domain"
	hedgeinfra "github.com/wyfcoding/fxtreasury/internal/hedge/infrastructure"
	hedgehttp "github.com/wyfcoding/fxtreasury/internal/hedge/interfaces/http"
	marketapp "github.com/wyfcoding/fxtreasury/internal/marketdata/application"
	marketdomain "github.com/wyfcoding/fxtreasury/internal/marketdata/domain"
	markethttp "github.com/wyfcoding/fxtreasury/internal/marketdata/interfaces/http"
	posapp "github.com/wyfcoding/fxtreasury/internal/position/application"
	posdomain "github.com/wyfcoding/fxtreasury/internal/position/domain"
	posinfra "github.com/wyfcoding/fxtreasury/internal/position/infrastructure"
	poshttp "github.com/wyfcoding/fxtreasury/internal/position/interfaces/http"
	pkgconfig "github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/messagequeue"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// noopEventPublisher 空操作事件发布者
type noopEventPublisher struct{}

var _ messagequeue.EventPublisher = (*noopEventPublisher)(nil)

func (p *noopEventPublisher) Publish(_ context.Context, _ string, _ string, _ any) error { return nil }
func (p *noopEventPublisher) PublishInTx(_ context.Context, _ any, _ string, _ string, _ any) error {
	return nil
}

// Config 服务配置
type Config struct {
	HTTPPort    int
	GRPCPort    int
	MySQLDSN    string
	KafkaBroker string
	AuditTopic  string
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// 配置
	cfg := &Config{
		HTTPPort:    8090,
		GRPCPort:    9090,
		MySQLDSN:    "root:password@tcp(localhost:3306)/fxtreasury?charset=utf8mb4&parseTime=True&loc=Local",
		KafkaBroker: "localhost:9092",
		AuditTopic:  "fxtreasury.audit",
	}

	// 数据库
	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{})
	if err != nil {
		logger.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(
		&classdomain.Config{},
		&decompdomain.Trade{},
		&decompdomain.Leg{},
		&posdomain.Position{},
		&posdomain.TradeContribution{},
		&hedgedomain.Hedge{},
		&hedgedomain.Authorization{},
		&hedgedomain.Match{},
		&approvaldomain.ResetRequest{},
		&approvaldomain.Approval{},
		&auditdomain.Event{},
	); err != nil {
		logger.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	// ID 生成
	gen, err := idgen.NewSnowflakeGenerator(pkgconfig.SnowflakeConfig{MachineID: 1})
	if err != nil {
		logger.Error("failed to create id generator", "error", err)
		os.Exit(1)
	}

	// 审计：库账本 + 日志 + Kafka 多路写入
	ledger := auditinfra.NewGormLedger(db)
	kafkaRecorder := auditinfra.NewKafkaRecorder(auditinfra.KafkaConfig{
		Brokers: []string{cfg.KafkaBroker},
		Topic:   cfg.AuditTopic,
	}, logger)
	defer kafkaRecorder.Close()
	auditor := auditinfra.NewFanoutRecorder(ledger, auditinfra.NewLogRecorder(logger), kafkaRecorder)

	// 事件
	eventPublisher := &noopEventPublisher{}

	// 仓储与事务
	tm := posinfra.NewTransactionManager(db)
	configRepo := classinfra.NewGormConfigRepository(db)
	tradeRepo := decompinfra.NewGormTradeRepository(db)
	positionRepo := posinfra.NewGormPositionRepository(db)
	resetRepo := approvalinfra.NewGormResetRequestRepository(db)
	hedgeRepo := hedgeinfra.NewGormHedgeRepository(db)

	// 服务
	classService := classapp.NewService(configRepo, eventPublisher, auditor, gen, logger)
	positionService := posapp.NewService(positionRepo, tm, eventPublisher, auditor, gen, nil, logger)
	book := marketdomain.NewBook()
	engine := decompdomain.NewEngine(book)
	tradeService := decompapp.NewTradeService(engine, tradeRepo, tm, classService, positionService, auditor, gen, logger)
	approvalService := approvalapp.NewService(resetRepo, tm, positionService, eventPublisher, auditor, gen, logger)
	hedgeService := hedgeapp.NewService(hedgeRepo, tm, positionService, eventPublisher, auditor, gen, logger)
	marketService := marketapp.NewService(book, positionService, logger)

	// 首次启动无配置时落一个初始版本
	if err := seedClassificationConfig(context.Background(), configRepo); err != nil {
		logger.Error("failed to seed classification config", "error", err)
		os.Exit(1)
	}

	// Gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Health
	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API
	api := router.Group("/api/v1")
	classhttp.NewHandler(classService).RegisterRoutes(api)
	decomphttp.NewHandler(tradeService).RegisterRoutes(api)
	poshttp.NewHandler(positionService).RegisterRoutes(api)
	approvalhttp.NewHandler(approvalService).RegisterRoutes(api)
	hedgehttp.NewHandler(hedgeService).RegisterRoutes(api)
	markethttp.NewHandler(marketService).RegisterRoutes(api)
	audithttp.NewHandler(ledger).RegisterRoutes(api)

	// HTTP Server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// gRPC Server
	grpcServer := grpc.NewServer()

	// Lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// Start HTTP
	g.Go(func() error {
		logger.Info("starting HTTP server", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Start gRPC
	g.Go(func() error {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("failed to listen gRPC: %w", err)
		}
		logger.Info("starting gRPC server", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})

	// Signals
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// seedClassificationConfig 首次启动落初始直盘配置
func seedClassificationConfig(ctx context.Context, repo classdomain.ConfigRepository) error {
	current, err := repo.Latest(ctx)
	if err != nil {
		return err
	}
	if current != nil {
		return nil
	}

	initial, err := classdomain.NewConfig(
		[]string{"USD", "EUR", "GBP", "AUD", "SGD", "JPY", "KRW", "MYR"},
		[]string{"USD", "EUR", "GBP", "AUD", "SGD", "JPY"},
		nil, nil, "system",
	)
	if err != nil {
		return err
	}
	return repo.Save(ctx, initial)
}
