package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"merchantpay/internal/config"
	"merchantpay/internal/infrastructure/cache"
	"merchantpay/internal/infrastructure/database"
	"merchantpay/internal/infrastructure/lock"
	"merchantpay/internal/infrastructure/mq"
	"merchantpay/internal/job"
	"merchantpay/internal/service"
	"merchantpay/pkg/idgen"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 MySQL
	db := database.InitMySQL(&cfg.MySQL)

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)

	// 初始化 Kafka
	producer := mq.InitKafka(&cfg.Kafka)
	defer producer.Close()

	// 账户锁：多实例部署下按商户维度互斥
	hostname, _ := os.Hostname()
	locker := lock.NewRedisAccountLocker(redisClient, fmt.Sprintf("ledgerd-%s-%d", hostname, os.Getpid()))

	transferService := service.NewTransferService(db, locker, cfg)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, producer, cfg)
	go outboxSender.Start(ctx)

	reconciler := job.NewTransferReconciler(db, transferService, cfg)
	go reconciler.Start(ctx)

	log.Println("ledgerd 已启动")

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	log.Println("服务已关闭")
}
