package repository

import (
	"context"
	"errors"

	"merchantpay/internal/model"

	"gorm.io/gorm"
)

var ErrLoanOfferNotFound = errors.New("贷款产品不存在")

type LoanOfferRepository struct {
	db *gorm.DB
}

func NewLoanOfferRepository(db *gorm.DB) *LoanOfferRepository {
	return &LoanOfferRepository{db: db}
}

func (r *LoanOfferRepository) Create(ctx context.Context, offer *model.LoanOffer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *LoanOfferRepository) GetByID(ctx context.Context, id string) (*model.LoanOffer, error) {
	var offer model.LoanOffer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanOfferNotFound
		}
		return nil, err
	}
	return &offer, nil
}

// ListActive 在售产品列表，按创建时间倒序
func (r *LoanOfferRepository) ListActive(ctx context.Context) ([]*model.LoanOffer, error) {
	var offers []*model.LoanOffer
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&offers).Error
	return offers, err
}

// Deactivate 下架产品，条款字段不可修改
func (r *LoanOfferRepository) Deactivate(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&model.LoanOffer{}).
		Where("id = ?", id).
		Update("is_active", false)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrLoanOfferNotFound
	}

	return nil
}
