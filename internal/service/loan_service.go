package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"merchantpay/internal/config"
	"merchantpay/internal/infrastructure/lock"
	"merchantpay/internal/model"
	"merchantpay/internal/repository"
	"merchantpay/pkg/amortization"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	reasonSupersededByNewApply = "提交了新的贷款申请"
	reasonSupersededByApproval = "同申请人另一笔申请已获批"
)

// LoanService 贷款目录 + 申请状态机
//
// 状态机：PENDING -> APPROVED / PENDING -> DECLINED，均为终态。
// 审批通过时放款入账与状态迁移在同一事务内，要么都生效要么都不生效。
type LoanService struct {
	db          *gorm.DB
	locker      lock.AccountLocker
	authz       Authorizer
	cfg         *config.Config
	offerRepo   *repository.LoanOfferRepository
	appRepo     *repository.LoanApplicationRepository
	accountRepo *repository.AccountRepository
	outboxRepo  *repository.OutboxRepository
}

func NewLoanService(db *gorm.DB, locker lock.AccountLocker, authz Authorizer, cfg *config.Config) *LoanService {
	return &LoanService{
		db:          db,
		locker:      locker,
		authz:       authz,
		cfg:         cfg,
		offerRepo:   repository.NewLoanOfferRepository(db),
		appRepo:     repository.NewLoanApplicationRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// CreateOffer 创建贷款产品（管理员能力）
// EMI、总还款额在这里计算一次并冻结
func (s *LoanService) CreateOffer(ctx context.Context, actor Actor, amount int64, annualRate float64, durationMonths int) (*model.LoanOffer, error) {
	if !s.authz.CanManageLoans(actor) {
		return nil, ErrPermissionDenied
	}

	terms, err := amortization.Calculate(amount, annualRate, durationMonths)
	if err != nil {
		return nil, err
	}

	offer := &model.LoanOffer{
		ID:             uuid.NewString(),
		Amount:         amount,
		InterestRate:   annualRate,
		DurationMonths: durationMonths,
		EMIPerMonth:    terms.EMIPerMonth,
		TotalPayback:   terms.TotalPayback,
		IsActive:       true,
		CreatedBy:      actor.MerchantID,
	}

	if err := s.offerRepo.Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("创建贷款产品失败: %w", err)
	}

	return offer, nil
}

// ListOffers 在售产品列表
func (s *LoanService) ListOffers(ctx context.Context) ([]*model.LoanOffer, error) {
	return s.offerRepo.ListActive(ctx)
}

// DeactivateOffer 下架产品（管理员能力）
func (s *LoanService) DeactivateOffer(ctx context.Context, actor Actor, offerID string) error {
	if !s.authz.CanManageLoans(actor) {
		return ErrPermissionDenied
	}
	return s.offerRepo.Deactivate(ctx, offerID)
}

// GetOffer 产品详情，申请单上的 LoanOfferID 用这里解析
func (s *LoanService) GetOffer(ctx context.Context, offerID string) (*model.LoanOffer, error) {
	return s.offerRepo.GetByID(ctx, offerID)
}

// Apply 提交贷款申请
// 新申请落库的同一事务内，申请人其余 PENDING 申请级联转 DECLINED
func (s *LoanService) Apply(ctx context.Context, applicantID, offerID string) (*model.LoanApplication, error) {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.IsActive {
		return nil, fmt.Errorf("产品已下架: %w", repository.ErrLoanOfferNotFound)
	}

	// 同一申请人的提交与审批共用一把账户锁串行化，
	// 并发提交不会留下两个 PENDING 申请
	release, err := s.locker.LockAccounts(ctx, applicantID)
	if err != nil {
		return nil, fmt.Errorf("获取账户锁失败: %w", err)
	}
	defer release()

	approved, err := s.appRepo.HasApproved(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if approved {
		return nil, ErrDuplicateApprovedLoan
	}

	app := &model.LoanApplication{
		ID:          uuid.NewString(),
		ApplicantID: applicantID,
		LoanOfferID: offerID,
		Status:      model.ApplicationStatusPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.appRepo.Create(ctx, tx, app); err != nil {
			return fmt.Errorf("创建申请失败: %w", err)
		}
		if err := s.appRepo.DeclinePendingExcept(ctx, tx, applicantID, app.ID, reasonSupersededByNewApply); err != nil {
			return fmt.Errorf("级联拒绝失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return app, nil
}

// Decide 审批申请（管理员能力）
// 通过：状态迁移 + 放款入账 + 级联拒绝同一事务提交，
// 放款失败时申请保持 PENDING，整个决定视为失败
func (s *LoanService) Decide(ctx context.Context, actor Actor, applicationID string, approve bool, reason string) (*model.LoanApplication, error) {
	if !s.authz.CanManageLoans(actor) {
		return nil, ErrPermissionDenied
	}

	app, err := s.appRepo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != model.ApplicationStatusPending {
		return nil, ErrInvalidState
	}

	if !approve {
		if err := s.decline(ctx, app, reason); err != nil {
			return nil, err
		}
		return s.appRepo.GetByID(ctx, applicationID)
	}

	offer, err := s.offerRepo.GetByID(ctx, app.LoanOfferID)
	if err != nil {
		return nil, err
	}

	// 放款入账与普通转账共用同一把账户锁
	release, err := s.locker.LockAccounts(ctx, app.ApplicantID)
	if err != nil {
		return nil, fmt.Errorf("获取账户锁失败: %w", err)
	}
	defer release()

	if _, err := s.accountRepo.GetByMerchantID(ctx, app.ApplicantID); err != nil {
		return nil, fmt.Errorf("申请人 %s: %w", app.ApplicantID, err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.appRepo.UpdateStatus(ctx, tx, app.ID,
			model.ApplicationStatusPending, model.ApplicationStatusApproved, ""); err != nil {
			if errors.Is(err, repository.ErrApplicationStatusInvalid) {
				return ErrInvalidState
			}
			return fmt.Errorf("更新申请状态失败: %w", err)
		}

		if err := s.accountRepo.Credit(ctx, tx, app.ApplicantID, offer.Amount); err != nil {
			return fmt.Errorf("放款入账失败: %w", err)
		}

		if err := s.appRepo.DeclinePendingExcept(ctx, tx, app.ApplicantID, app.ID, reasonSupersededByApproval); err != nil {
			return fmt.Errorf("级联拒绝失败: %w", err)
		}

		msgPayload := map[string]interface{}{
			"event":          model.EventLoanApproved,
			"application_id": app.ID,
			"applicant_id":   app.ApplicantID,
			"loan_offer_id":  offer.ID,
			"amount":         offer.Amount,
			"approved_at":    time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: app.ID,
			Topic:      s.cfg.Kafka.Topic.LoanEvents,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("贷款审批通过: applicationID=%s, applicant=%s, amount=%d", app.ID, app.ApplicantID, offer.Amount)
	return s.appRepo.GetByID(ctx, applicationID)
}

func (s *LoanService) decline(ctx context.Context, app *model.LoanApplication, reason string) error {
	err := s.appRepo.UpdateStatus(ctx, nil, app.ID,
		model.ApplicationStatusPending, model.ApplicationStatusDeclined, reason)
	if errors.Is(err, repository.ErrApplicationStatusInvalid) {
		return ErrInvalidState
	}
	return err
}

// ListMyApplications 申请人视角的申请列表
func (s *LoanService) ListMyApplications(ctx context.Context, applicantID string) ([]*model.LoanApplication, error) {
	return s.appRepo.ListByApplicant(ctx, applicantID)
}

// ListApplications 管理端全量申请列表（管理员能力）
func (s *LoanService) ListApplications(ctx context.Context, actor Actor, page, pageSize int) ([]*model.LoanApplication, int64, error) {
	if !s.authz.CanManageLoans(actor) {
		return nil, 0, ErrPermissionDenied
	}
	return s.appRepo.ListAll(ctx, page, pageSize)
}
