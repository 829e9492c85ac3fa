package repository

import (
	"context"
	"errors"
	"time"

	"merchantpay/internal/model"

	"gorm.io/gorm"
)

var ErrTransactionStatusInvalid = errors.New("流水状态不合法")

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByTransactionNo(ctx context.Context, transactionNo string) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// UpdateStatus 条件更新流水状态，只允许状态机内的迁移
// 终态流水（SENT/FAILED）在这里被拒绝再次变更
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, transactionNo string, fromStatus, toStatus string) error {
	if !model.CanTransactionTransitionTo(fromStatus, toStatus) {
		return ErrTransactionStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("transaction_no = ? AND status = ?", transactionNo, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrTransactionStatusInvalid
	}

	return nil
}

// ListByParticipant 某商户参与的全部流水（发出 + 收到），按时间倒序
func (r *TransactionRepository) ListByParticipant(ctx context.Context, merchantID string) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("from_merchant_id = ? OR to_merchant_id = ?", merchantID, merchantID).
		Order("created_at DESC").
		Find(&transactions).Error
	return transactions, err
}

// ListByPair 两个商户之间的双向流水，按时间正序（会话视图）
func (r *TransactionRepository) ListByPair(ctx context.Context, merchantA, merchantB string) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("(from_merchant_id = ? AND to_merchant_id = ?) OR (from_merchant_id = ? AND to_merchant_id = ?)",
			merchantA, merchantB, merchantB, merchantA).
		Order("created_at ASC").
		Find(&transactions).Error
	return transactions, err
}

// GetStalePending 查询滞留的 PENDING 流水，对账任务的输入
func (r *TransactionRepository) GetStalePending(ctx context.Context, beforeTime time.Time, limit int) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.TransactionStatusPending, beforeTime).
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}
