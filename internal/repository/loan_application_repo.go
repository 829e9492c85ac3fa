package repository

import (
	"context"
	"errors"

	"merchantpay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrApplicationNotFound      = errors.New("贷款申请不存在")
	ErrApplicationStatusInvalid = errors.New("申请状态不合法")
)

type LoanApplicationRepository struct {
	db *gorm.DB
}

func NewLoanApplicationRepository(db *gorm.DB) *LoanApplicationRepository {
	return &LoanApplicationRepository{db: db}
}

func (r *LoanApplicationRepository) Create(ctx context.Context, tx *gorm.DB, app *model.LoanApplication) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(app).Error
}

func (r *LoanApplicationRepository) GetByID(ctx context.Context, id string) (*model.LoanApplication, error) {
	var app model.LoanApplication
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	return &app, nil
}

// HasApproved 申请人是否已有 APPROVED 申请
func (r *LoanApplicationRepository) HasApproved(ctx context.Context, applicantID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.LoanApplication{}).
		Where("applicant_id = ? AND status = ?", applicantID, model.ApplicationStatusApproved).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateStatus 条件更新申请状态，只允许从 PENDING 迁出
// 已决定的申请在这里被拒绝再次变更
func (r *LoanApplicationRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, fromStatus, toStatus, reason string) error {
	if !model.CanApplicationTransitionTo(fromStatus, toStatus) {
		return ErrApplicationStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	if reason != "" {
		updates["decline_reason"] = reason
	}

	result := tx.WithContext(ctx).
		Model(&model.LoanApplication{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrApplicationStatusInvalid
	}

	return nil
}

// DeclinePendingExcept 级联拒绝：把申请人除 exceptID 外的全部
// PENDING 申请置为 DECLINED，保证任一时刻最多一个在途申请
func (r *LoanApplicationRepository) DeclinePendingExcept(ctx context.Context, tx *gorm.DB, applicantID, exceptID, reason string) error {
	if tx == nil {
		tx = r.db
	}

	return tx.WithContext(ctx).
		Model(&model.LoanApplication{}).
		Where("applicant_id = ? AND status = ? AND id <> ?", applicantID, model.ApplicationStatusPending, exceptID).
		Updates(map[string]interface{}{
			"status":         model.ApplicationStatusDeclined,
			"decline_reason": reason,
		}).Error
}

// ListByApplicant 申请人视角的申请列表，按创建时间倒序
func (r *LoanApplicationRepository) ListByApplicant(ctx context.Context, applicantID string) ([]*model.LoanApplication, error) {
	var apps []*model.LoanApplication
	err := r.db.WithContext(ctx).
		Where("applicant_id = ?", applicantID).
		Order("created_at DESC").
		Find(&apps).Error
	return apps, err
}

// ListAll 管理端全量申请列表，分页，按创建时间倒序
func (r *LoanApplicationRepository) ListAll(ctx context.Context, page, pageSize int) ([]*model.LoanApplication, int64, error) {
	var apps []*model.LoanApplication
	var total int64

	query := r.db.WithContext(ctx).Model(&model.LoanApplication{})

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&apps).Error

	return apps, total, err
}
