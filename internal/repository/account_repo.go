package repository

import (
	"context"
	"errors"

	"merchantpay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound   = errors.New("账户不存在")
	ErrInvalidAmount     = errors.New("金额必须大于0")
	ErrInsufficientFunds = errors.New("余额不足")
	ErrDuplicateAccount  = errors.New("商户已有账户")
	ErrOptimisticLock    = errors.New("乐观锁冲突，请重试")
)

// AccountRepository 余额的唯一修改入口
// 除转账引擎和贷款审批外，任何代码不得直接改余额
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByMerchantID(ctx context.Context, merchantID string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("merchant_id = ?", merchantID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByAccountNumber 按账号查询，未找到返回 nil
func (r *AccountRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("account_number = ?", accountNumber).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// Debit 条件扣款：金额为正、余额充足且版本号未变时才生效
// 余额不会被扣成负数，并发丢失更新在这里被挡住
func (r *AccountRepository) Debit(ctx context.Context, tx *gorm.DB, merchantID string, amount int64, version int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("merchant_id = ? AND balance >= ? AND version = ?", merchantID, amount, version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		account, err := r.GetByMerchantID(ctx, merchantID)
		if err != nil {
			return err
		}
		if account.Balance < amount {
			return ErrInsufficientFunds
		}
		return ErrOptimisticLock
	}

	return nil
}

// Credit 入账，金额必须为正
func (r *AccountRepository) Credit(ctx context.Context, tx *gorm.DB, merchantID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("merchant_id = ?", merchantID).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}
