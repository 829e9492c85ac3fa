package job

import (
	"context"
	"log"
	"time"

	"merchantpay/internal/config"
	"merchantpay/internal/repository"
	"merchantpay/internal/service"

	"gorm.io/gorm"
)

// TransferReconciler 转账对账任务
//
// 扣款与入账共用一个数据库事务，事务提交前崩溃的转账
// 会以 PENDING 流水的形态滞留。本任务周期扫描并续做：
// 余额仍充足则完成转账，不足则标记失败。不做静默丢弃。
type TransferReconciler struct {
	db              *gorm.DB
	transactionRepo *repository.TransactionRepository
	transferService *service.TransferService
	cfg             *config.Config
	stopCh          chan struct{}
	interval        time.Duration
	batchSize       int
}

func NewTransferReconciler(db *gorm.DB, transferService *service.TransferService, cfg *config.Config) *TransferReconciler {
	return &TransferReconciler{
		db:              db,
		transactionRepo: repository.NewTransactionRepository(db),
		transferService: transferService,
		cfg:             cfg,
		stopCh:          make(chan struct{}),
		interval:        30 * time.Second,
		batchSize:       50,
	}
}

func (j *TransferReconciler) Start(ctx context.Context) {
	log.Println("[TransferReconciler] 转账对账任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[TransferReconciler] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[TransferReconciler] 任务停止")
			return
		case <-ticker.C:
			j.reconcilePendingTransfers(ctx)
		}
	}
}

func (j *TransferReconciler) Stop() {
	close(j.stopCh)
}

func (j *TransferReconciler) reconcilePendingTransfers(ctx context.Context) {
	age := time.Duration(j.cfg.Business.PendingTransferAgeMinute) * time.Minute
	beforeTime := time.Now().Add(-age)

	transactions, err := j.transactionRepo.GetStalePending(ctx, beforeTime, j.batchSize)
	if err != nil {
		log.Printf("[TransferReconciler] 查询滞留流水失败: %v", err)
		return
	}

	if len(transactions) == 0 {
		return
	}

	log.Printf("[TransferReconciler] 发现 %d 笔滞留的 PENDING 流水", len(transactions))

	for _, trans := range transactions {
		if err := j.transferService.CompletePending(ctx, trans.TransactionNo); err != nil {
			log.Printf("[TransferReconciler] 续做流水失败: transactionNo=%s, err=%v", trans.TransactionNo, err)
			continue
		}
		log.Printf("[TransferReconciler] 流水已对账: transactionNo=%s, from=%s, to=%s, amount=%d",
			trans.TransactionNo, trans.FromMerchantID, trans.ToMerchantID, trans.Amount)
	}
}
