package service

import (
	"context"
	"errors"
	"testing"

	"merchantpay/internal/config"
	"merchantpay/internal/model"
	"merchantpay/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 打开内存 SQLite 并建表
// 限制单连接：内存库每个连接各有一份数据
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Account{},
		&model.Transaction{},
		&model.LoanOffer{},
		&model.LoanApplication{},
		&model.OutboxMessage{},
	))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				TransferEvents: "merchantpay.transfer.events",
				LoanEvents:     "merchantpay.loan.events",
			},
		},
		Business: config.BusinessConfig{
			MaxRetryCount:            3,
			PendingTransferAgeMinute: 5,
			AccountNumberMaxRetry:    5,
		},
	}
}

func seedAccount(t *testing.T, db *gorm.DB, merchantID, accountNumber string, balance int64) *model.Account {
	t.Helper()
	account := &model.Account{
		MerchantID:    merchantID,
		AccountNumber: accountNumber,
		Balance:       balance,
	}
	require.NoError(t, repository.NewAccountRepository(db).Create(context.Background(), account))
	return account
}

func balanceOf(t *testing.T, db *gorm.DB, merchantID string) int64 {
	t.Helper()
	account, err := repository.NewAccountRepository(db).GetByMerchantID(context.Background(), merchantID)
	require.NoError(t, err)
	return account.Balance
}

// fakeDirectory 商户目录的内存替身
type fakeDirectory struct {
	phones map[string]string
}

func (d fakeDirectory) ResolveByPhone(_ context.Context, phoneNumber string) (string, error) {
	merchantID, ok := d.phones[phoneNumber]
	if !ok {
		return "", errors.New("商户目录中不存在该手机号")
	}
	return merchantID, nil
}
