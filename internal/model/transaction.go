package model

import (
	"time"
)

const (
	TransactionStatusPending = "PENDING"
	TransactionStatusSent    = "SENT"
	TransactionStatusFailed  = "FAILED"
)

// 转账流水只允许 PENDING -> SENT / PENDING -> FAILED，
// 终态之后不再变更
var validTransactionTransitions = map[string][]string{
	TransactionStatusPending: {TransactionStatusSent, TransactionStatusFailed},
}

func CanTransactionTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := validTransactionTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Transaction 转账流水表
//
// 流水表设计原则：
// 1. 只追加，不修改，不删除 —— 终态之后任何字段不再变更
// 2. 先落 PENDING 再动余额 —— 崩溃后对账任务据此恢复
// 3. 金额恒为正数，方向由 from/to 表达
type Transaction struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	FromMerchantID string    `gorm:"type:varchar(64);index;not null" json:"from_merchant_id"`     // 付款方商户ID
	ToMerchantID   string    `gorm:"type:varchar(64);index;not null" json:"to_merchant_id"`       // 收款方商户ID
	Amount         int64     `gorm:"not null" json:"amount"`                                      // 转账金额（最小货币单位，> 0）
	Status         string    `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transfer_transaction"
}

const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// TransactionView 带方向标注的流水视图
// Direction 在查询时相对被查询方计算，不落库
type TransactionView struct {
	Transaction
	Direction string `json:"direction"`
}

// AnnotateFor 以 merchantID 视角标注流水方向
func (t Transaction) AnnotateFor(merchantID string) TransactionView {
	direction := DirectionReceived
	if t.FromMerchantID == merchantID {
		direction = DirectionSent
	}
	return TransactionView{Transaction: t, Direction: direction}
}
