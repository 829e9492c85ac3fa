package job

import (
	"context"
	"testing"
	"time"

	"merchantpay/internal/infrastructure/lock"
	"merchantpay/internal/model"
	"merchantpay/internal/repository"
	"merchantpay/internal/service"
	"merchantpay/pkg/idgen"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedStalePending(t *testing.T, db *gorm.DB, from, to string, amount int64) *model.Transaction {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewTransactionRepository(db)

	trans := &model.Transaction{
		TransactionNo:  idgen.GenerateTransactionNo(),
		FromMerchantID: from,
		ToMerchantID:   to,
		Amount:         amount,
		Status:         model.TransactionStatusPending,
	}
	require.NoError(t, repo.Create(ctx, nil, trans))

	// 更新时间拨回过去，使其落入对账窗口
	require.NoError(t, db.Model(&model.Transaction{}).
		Where("transaction_no = ?", trans.TransactionNo).
		UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)
	return trans
}

func seedAccount(t *testing.T, db *gorm.DB, merchantID, accountNumber string, balance int64) {
	t.Helper()
	require.NoError(t, repository.NewAccountRepository(db).Create(context.Background(), &model.Account{
		MerchantID:    merchantID,
		AccountNumber: accountNumber,
		Balance:       balance,
	}))
}

// 滞留的 PENDING 流水被对账任务续做到完成
func TestReconcilerCompletesStalePending(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	transferService := service.NewTransferService(db, lock.NewLocalAccountLocker(), cfg)
	reconciler := NewTransferReconciler(db, transferService, cfg)
	ctx := context.Background()

	seedAccount(t, db, "m-a", "100000000001", 1000)
	seedAccount(t, db, "m-b", "100000000002", 0)
	trans := seedStalePending(t, db, "m-a", "m-b", 400)

	reconciler.reconcilePendingTransfers(ctx)

	got, err := repository.NewTransactionRepository(db).GetByTransactionNo(ctx, trans.TransactionNo)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusSent, got.Status)

	fromAccount, err := repository.NewAccountRepository(db).GetByMerchantID(ctx, "m-a")
	require.NoError(t, err)
	assert.Equal(t, int64(600), fromAccount.Balance)

	toAccount, err := repository.NewAccountRepository(db).GetByMerchantID(ctx, "m-b")
	require.NoError(t, err)
	assert.Equal(t, int64(400), toAccount.Balance)

	// 再次对账是空操作
	reconciler.reconcilePendingTransfers(ctx)
	fromAccount, err = repository.NewAccountRepository(db).GetByMerchantID(ctx, "m-a")
	require.NoError(t, err)
	assert.Equal(t, int64(600), fromAccount.Balance)
}

// 余额不足的滞留流水被标记 FAILED，不做静默丢弃
func TestReconcilerMarksInsufficientAsFailed(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	transferService := service.NewTransferService(db, lock.NewLocalAccountLocker(), cfg)
	reconciler := NewTransferReconciler(db, transferService, cfg)
	ctx := context.Background()

	seedAccount(t, db, "m-a", "100000000001", 100)
	seedAccount(t, db, "m-b", "100000000002", 0)
	trans := seedStalePending(t, db, "m-a", "m-b", 400)

	reconciler.reconcilePendingTransfers(ctx)

	got, err := repository.NewTransactionRepository(db).GetByTransactionNo(ctx, trans.TransactionNo)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusFailed, got.Status)

	fromAccount, err := repository.NewAccountRepository(db).GetByMerchantID(ctx, "m-a")
	require.NoError(t, err)
	assert.Equal(t, int64(100), fromAccount.Balance)
}

// 新鲜的 PENDING 流水不在对账窗口内，留给在途事务自己完成
func TestReconcilerSkipsFreshPending(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	transferService := service.NewTransferService(db, lock.NewLocalAccountLocker(), cfg)
	reconciler := NewTransferReconciler(db, transferService, cfg)
	ctx := context.Background()

	seedAccount(t, db, "m-a", "100000000001", 1000)
	seedAccount(t, db, "m-b", "100000000002", 0)

	trans := &model.Transaction{
		TransactionNo:  idgen.GenerateTransactionNo(),
		FromMerchantID: "m-a",
		ToMerchantID:   "m-b",
		Amount:         400,
		Status:         model.TransactionStatusPending,
	}
	require.NoError(t, repository.NewTransactionRepository(db).Create(ctx, nil, trans))

	reconciler.reconcilePendingTransfers(ctx)

	got, err := repository.NewTransactionRepository(db).GetByTransactionNo(ctx, trans.TransactionNo)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusPending, got.Status)
}
