package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"merchantpay/internal/config"
	"merchantpay/internal/infrastructure/lock"
	"merchantpay/internal/model"
	"merchantpay/internal/repository"
	"merchantpay/pkg/idgen"

	"gorm.io/gorm"
)

// TransferService 转账引擎
//
// 一致性设计：
//  1. PENDING 流水先于任何余额变动单独落库
//  2. 扣款、入账、流水置 SENT 在同一个数据库事务内提交
//  3. 事务未提交而进程崩溃时，流水停留在 PENDING，
//     由对账任务续做到完成或标记失败 —— 钱不会凭空消失
type TransferService struct {
	db              *gorm.DB
	locker          lock.AccountLocker
	cfg             *config.Config
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewTransferService(db *gorm.DB, locker lock.AccountLocker, cfg *config.Config) *TransferService {
	return &TransferService{
		db:              db,
		locker:          locker,
		cfg:             cfg,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// Transfer 两方转账，全有或全无
func (s *TransferService) Transfer(ctx context.Context, fromMerchantID, toMerchantID string, amount int64) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromMerchantID == toMerchantID {
		return nil, ErrInvalidTransfer
	}

	// 账户锁按字典序获取，见 lock.AccountLocker
	release, err := s.locker.LockAccounts(ctx, fromMerchantID, toMerchantID)
	if err != nil {
		return nil, fmt.Errorf("获取账户锁失败: %w", err)
	}
	defer release()

	fromAccount, err := s.accountRepo.GetByMerchantID(ctx, fromMerchantID)
	if err != nil {
		return nil, fmt.Errorf("付款方 %s: %w", fromMerchantID, err)
	}
	if _, err := s.accountRepo.GetByMerchantID(ctx, toMerchantID); err != nil {
		return nil, fmt.Errorf("收款方 %s: %w", toMerchantID, err)
	}

	// 余额不足在落流水之前拒绝，不产生任何持久化痕迹
	if fromAccount.Balance < amount {
		return nil, repository.ErrInsufficientFunds
	}

	trans := &model.Transaction{
		TransactionNo:  idgen.GenerateTransactionNo(),
		FromMerchantID: fromMerchantID,
		ToMerchantID:   toMerchantID,
		Amount:         amount,
		Status:         model.TransactionStatusPending,
	}
	if err := s.transactionRepo.Create(ctx, nil, trans); err != nil {
		return nil, fmt.Errorf("创建流水失败: %w", err)
	}

	if err := s.settle(ctx, trans, fromAccount.Version); err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) || errors.Is(err, repository.ErrOptimisticLock) {
			// 持锁期间余额不应再变，这里只是兜底；
			// 标记失败也出错时流水留在 PENDING，交给对账任务
			if markErr := s.transactionRepo.UpdateStatus(ctx, nil,
				trans.TransactionNo, model.TransactionStatusPending, model.TransactionStatusFailed); markErr != nil {
				log.Printf("[TransferService] 标记流水失败出错: transactionNo=%s, err=%v", trans.TransactionNo, markErr)
			} else {
				trans.Status = model.TransactionStatusFailed
			}
		}
		return nil, err
	}

	trans.Status = model.TransactionStatusSent
	log.Printf("转账成功: transactionNo=%s, from=%s, to=%s, amount=%d",
		trans.TransactionNo, fromMerchantID, toMerchantID, amount)
	return trans, nil
}

// settle 扣款 + 入账 + 流水置 SENT + 出站事件，单事务提交
func (s *TransferService) settle(ctx context.Context, trans *model.Transaction, fromVersion int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Debit(ctx, tx, trans.FromMerchantID, trans.Amount, fromVersion); err != nil {
			return fmt.Errorf("扣款失败: %w", err)
		}

		if err := s.accountRepo.Credit(ctx, tx, trans.ToMerchantID, trans.Amount); err != nil {
			return fmt.Errorf("入账失败: %w", err)
		}

		if err := s.transactionRepo.UpdateStatus(ctx, tx,
			trans.TransactionNo, model.TransactionStatusPending, model.TransactionStatusSent); err != nil {
			return fmt.Errorf("更新流水状态失败: %w", err)
		}

		msgPayload := map[string]interface{}{
			"event":          model.EventTransferSent,
			"transaction_no": trans.TransactionNo,
			"from":           trans.FromMerchantID,
			"to":             trans.ToMerchantID,
			"amount":         trans.Amount,
			"sent_at":        time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: trans.TransactionNo,
			Topic:      s.cfg.Kafka.Topic.TransferEvents,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})
}

// CompletePending 续做滞留的 PENDING 流水（对账入口）
// 扣款到入账是同一事务，重放不会重复扣款
func (s *TransferService) CompletePending(ctx context.Context, transactionNo string) error {
	trans, err := s.transactionRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		return err
	}
	if trans == nil || trans.Status != model.TransactionStatusPending {
		return nil // 已被处理
	}

	release, err := s.locker.LockAccounts(ctx, trans.FromMerchantID, trans.ToMerchantID)
	if err != nil {
		return fmt.Errorf("获取账户锁失败: %w", err)
	}
	defer release()

	fromAccount, err := s.accountRepo.GetByMerchantID(ctx, trans.FromMerchantID)
	if err != nil {
		return fmt.Errorf("付款方 %s: %w", trans.FromMerchantID, err)
	}

	if fromAccount.Balance < trans.Amount {
		return s.transactionRepo.UpdateStatus(ctx, nil,
			trans.TransactionNo, model.TransactionStatusPending, model.TransactionStatusFailed)
	}

	return s.settle(ctx, trans, fromAccount.Version)
}

// ListHistory 某商户的全部流水，方向相对该商户标注
func (s *TransferService) ListHistory(ctx context.Context, merchantID string) ([]model.TransactionView, error) {
	if _, err := s.accountRepo.GetByMerchantID(ctx, merchantID); err != nil {
		return nil, err
	}

	rows, err := s.transactionRepo.ListByParticipant(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	views := make([]model.TransactionView, 0, len(rows))
	for _, t := range rows {
		views = append(views, t.AnnotateFor(merchantID))
	}
	return views, nil
}

// ListConversation 两个商户间的双向流水合并视图，
// 方向相对第一个参数标注
func (s *TransferService) ListConversation(ctx context.Context, firstMerchantID, secondMerchantID string) ([]model.TransactionView, error) {
	if _, err := s.accountRepo.GetByMerchantID(ctx, firstMerchantID); err != nil {
		return nil, fmt.Errorf("商户 %s: %w", firstMerchantID, err)
	}
	if _, err := s.accountRepo.GetByMerchantID(ctx, secondMerchantID); err != nil {
		return nil, fmt.Errorf("商户 %s: %w", secondMerchantID, err)
	}

	rows, err := s.transactionRepo.ListByPair(ctx, firstMerchantID, secondMerchantID)
	if err != nil {
		return nil, err
	}

	views := make([]model.TransactionView, 0, len(rows))
	for _, t := range rows {
		views = append(views, t.AnnotateFor(firstMerchantID))
	}
	return views, nil
}
