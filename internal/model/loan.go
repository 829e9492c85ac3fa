package model

import (
	"time"
)

// LoanOffer 预审批贷款产品表
// EMI 与总还款额在创建时由 amortization 计算并冻结，
// 之后只允许下架（IsActive=false），不允许改条款
type LoanOffer struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"` // uuid
	Amount         int64     `gorm:"not null" json:"amount"`                // 本金（最小货币单位）
	InterestRate   float64   `gorm:"not null" json:"interest_rate"`         // 年利率（百分比）
	DurationMonths int       `gorm:"not null" json:"duration_months"`       // 期数（月）
	EMIPerMonth    int64     `gorm:"not null" json:"emi_per_month"`         // 月供（派生字段）
	TotalPayback   int64     `gorm:"not null" json:"total_payback"`         // 总还款额（派生字段）
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedBy      string    `gorm:"type:varchar(64);not null" json:"created_by"` // 创建人商户ID
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (LoanOffer) TableName() string {
	return "loan_offer"
}

const (
	ApplicationStatusPending  = "PENDING"
	ApplicationStatusApproved = "APPROVED"
	ApplicationStatusDeclined = "DECLINED"
)

// 申请单只允许 PENDING -> APPROVED / PENDING -> DECLINED，
// APPROVED 和 DECLINED 均为终态
var validApplicationTransitions = map[string][]string{
	ApplicationStatusPending: {ApplicationStatusApproved, ApplicationStatusDeclined},
}

func CanApplicationTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := validApplicationTransitions[currentStatus]
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

// LoanApplication 贷款申请表
// 同一申请人最多只有一个 APPROVED 申请；
// 新申请创建时，该申请人其余 PENDING 申请自动转为 DECLINED
type LoanApplication struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"` // uuid
	ApplicantID   string    `gorm:"type:varchar(64);index;not null" json:"applicant_id"`
	LoanOfferID   string    `gorm:"type:varchar(36);index;not null" json:"loan_offer_id"` // 外键式引用，显式查询解析
	Status        string    `gorm:"type:varchar(20);index;not null" json:"status"`
	DeclineReason string    `gorm:"type:varchar(256)" json:"decline_reason,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LoanApplication) TableName() string {
	return "loan_application"
}
