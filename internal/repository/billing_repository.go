package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"exam-coach/internal/model"
)

// ErrInsufficientFunds is returned when a debit finds no credit left.
var ErrInsufficientFunds = errors.New("insufficient funds")

// BillingRepository keeps prepaid credits and subscriptions.
type BillingRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewBillingRepository(db *gorm.DB) *BillingRepository {
	return &BillingRepository{db: db, now: time.Now}
}

func (r *BillingRepository) CreditBalance(ctx context.Context, userID int64) (int, error) {
	var wallet model.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	switch {
	case err == nil:
		return wallet.Credits, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return 0, nil
	default:
		return 0, fmt.Errorf("credit balance: %w", err)
	}
}

// DebitCredit removes one credit in a single conditional update so concurrent
// debits can never take the balance below zero.
func (r *BillingRepository) DebitCredit(ctx context.Context, userID int64) error {
	res := r.db.WithContext(ctx).Model(&model.Wallet{}).
		Where("user_id = ? AND credits > 0", userID).
		Update("credits", gorm.Expr("credits - 1"))
	if res.Error != nil {
		return fmt.Errorf("debit credit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func (r *BillingRepository) HasActiveSubscription(ctx context.Context, userID int64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Wallet{}).
		Where("user_id = ? AND subscription_until IS NOT NULL AND subscription_until > ?", userID, r.now()).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("subscription lookup: %w", err)
	}
	return n > 0, nil
}

// AddCredits tops up a wallet, creating it on first use.
func (r *BillingRepository) AddCredits(ctx context.Context, userID int64, amount int) error {
	wallet := model.Wallet{UserID: userID, Credits: amount}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"credits": gorm.Expr("wallets.credits + ?", amount), "updated_at": r.now()}),
	}).Create(&wallet).Error
	if err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	return nil
}

func (r *BillingRepository) SetSubscription(ctx context.Context, userID int64, until time.Time) error {
	wallet := model.Wallet{UserID: userID, SubscriptionUntil: &until}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"subscription_until", "updated_at"}),
	}).Create(&wallet).Error
	if err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	return nil
}
