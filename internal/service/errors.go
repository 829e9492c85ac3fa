package service

import (
	"errors"

	"merchantpay/internal/repository"
)

var (
	// ErrInvalidAmount 与账户存储层共用同一个哨兵，
	// errors.Is 在两层之间都成立
	ErrInvalidAmount         = repository.ErrInvalidAmount
	ErrInvalidTransfer       = errors.New("不允许向自己转账")
	ErrDuplicateApprovedLoan = errors.New("已存在获批的贷款申请")
	ErrInvalidState          = errors.New("申请已决定，不允许再次变更")
	ErrPermissionDenied      = errors.New("无权执行该操作")
)
