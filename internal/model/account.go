package model

import (
	"time"
)

// Account 商户账户表
// 记录商户的余额，是转账和贷款放款的资金载体
type Account struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantID    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"merchant_id"`    // 商户ID，注册服务传入
	AccountNumber string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"account_number"` // 12位账号，系统生成后不可变
	Balance       int64     `gorm:"not null;default:0" json:"balance"`                           // 可用余额（最小货币单位），恒 >= 0
	Version       int       `gorm:"not null;default:0" json:"version"`                           // 乐观锁版本号
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
