package service

import "context"

// ============================================================
// 授权边界
// ============================================================
//
// 调用方身份由外部认证协作方校验后传入，本服务只消费结果。
// 管理员能力是显式角色，不是写死的魔法常量。

type Role string

const (
	RoleMerchant Role = "MERCHANT"
	RoleAdmin    Role = "ADMIN"
)

// Actor 经过认证的调用方身份
type Actor struct {
	MerchantID string
	Role       Role
}

// Authorizer 能力判定接口，由外部协作方注入
type Authorizer interface {
	// CanManageLoans 是否允许创建贷款产品、审批贷款申请
	CanManageLoans(actor Actor) bool
}

// RoleAuthorizer 默认实现：仅管理员角色可管理贷款
type RoleAuthorizer struct{}

func (RoleAuthorizer) CanManageLoans(actor Actor) bool {
	return actor.Role == RoleAdmin
}

// MerchantDirectory 商户目录协作方：
// 手机号/账号 与 商户ID 的互查由目录服务负责
type MerchantDirectory interface {
	ResolveByPhone(ctx context.Context, phoneNumber string) (merchantID string, err error)
}
