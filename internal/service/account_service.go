package service

import (
	"context"
	"errors"
	"fmt"

	"merchantpay/internal/config"
	"merchantpay/internal/model"
	"merchantpay/internal/repository"
	"merchantpay/pkg/idgen"

	"gorm.io/gorm"
)

const defaultAccountNumberRetry = 5

type AccountService struct {
	accountRepo *repository.AccountRepository
	directory   MerchantDirectory
	db          *gorm.DB
	maxRetry    int
	genNumber   func() string // 账号生成函数，测试中可替换
}

// NewAccountService 创建账户服务
// directory 为商户目录协作方，不需要目录查询时可传 nil
func NewAccountService(db *gorm.DB, directory MerchantDirectory, cfg *config.Config) *AccountService {
	maxRetry := defaultAccountNumberRetry
	if cfg != nil && cfg.Business.AccountNumberMaxRetry > 0 {
		maxRetry = cfg.Business.AccountNumberMaxRetry
	}
	return &AccountService{
		accountRepo: repository.NewAccountRepository(db),
		directory:   directory,
		db:          db,
		maxRetry:    maxRetry,
		genNumber:   idgen.GenerateAccountNumber,
	}
}

// CreateAccount 开户：商户注册时调用
// 账号为系统生成的12位随机数，冲突时重新生成
func (s *AccountService) CreateAccount(ctx context.Context, merchantID string, initialBalance int64) (*model.Account, error) {
	if initialBalance < 0 {
		return nil, ErrInvalidAmount
	}

	_, err := s.accountRepo.GetByMerchantID(ctx, merchantID)
	if err == nil {
		return nil, repository.ErrDuplicateAccount
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, err
	}

	for i := 0; i < s.maxRetry; i++ {
		account := &model.Account{
			MerchantID:    merchantID,
			AccountNumber: s.genNumber(),
			Balance:       initialBalance,
		}

		existing, err := s.accountRepo.GetByAccountNumber(ctx, account.AccountNumber)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue // 账号撞号，重新生成
		}

		if err := s.accountRepo.Create(ctx, account); err != nil {
			// 并发开户撞上唯一索引时重试下一个账号
			continue
		}
		return account, nil
	}

	return nil, fmt.Errorf("生成账号失败：连续 %d 次冲突", s.maxRetry)
}

// GetBalance 查询余额，账户不存在时报错而不是返回0
func (s *AccountService) GetBalance(ctx context.Context, merchantID string) (int64, error) {
	account, err := s.accountRepo.GetByMerchantID(ctx, merchantID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

func (s *AccountService) GetAccount(ctx context.Context, merchantID string) (*model.Account, error) {
	return s.accountRepo.GetByMerchantID(ctx, merchantID)
}

// GetAccountByNumber 按12位账号查询
func (s *AccountService) GetAccountByNumber(ctx context.Context, accountNumber string) (*model.Account, error) {
	account, err := s.accountRepo.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, repository.ErrAccountNotFound
	}
	return account, nil
}

// GetBalanceByPhone 经商户目录按手机号查余额
func (s *AccountService) GetBalanceByPhone(ctx context.Context, phoneNumber string) (int64, error) {
	if s.directory == nil {
		return 0, errors.New("未配置商户目录")
	}

	merchantID, err := s.directory.ResolveByPhone(ctx, phoneNumber)
	if err != nil {
		return 0, fmt.Errorf("商户目录查询失败: %w", err)
	}

	return s.GetBalance(ctx, merchantID)
}
