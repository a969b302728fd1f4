package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"exam-coach/internal/repository"
)

var (
	// ErrAccessDenied is returned when no rule authorizes a lesson, including a lost debit race.
	ErrAccessDenied = errors.New("access denied")
	// ErrNoGrant is returned when Consume is called without a live grant from CheckAccess.
	ErrNoGrant = errors.New("consume without a preceding access grant")
)

// Billing is the external credit and subscription collaborator.
type Billing interface {
	CreditBalance(ctx context.Context, userID int64) (int, error)
	DebitCredit(ctx context.Context, userID int64) error
	HasActiveSubscription(ctx context.Context, userID int64) (bool, error)
}

// GrantKind names the rule that authorized a lesson.
type GrantKind int

const (
	Denied GrantKind = iota
	GrantFreeFirstDay
	GrantDailyFree
	GrantCredit
	GrantSubscription
)

func (k GrantKind) String() string {
	switch k {
	case GrantFreeFirstDay:
		return "free_first_day"
	case GrantDailyFree:
		return "daily_free"
	case GrantCredit:
		return "credit"
	case GrantSubscription:
		return "subscription"
	default:
		return "denied"
	}
}

// AccessDecision is the outcome of CheckAccess.
type AccessDecision struct {
	Kind    GrantKind
	UserID  int64
	GrantID uuid.UUID
	// Remaining is the free allowance left after this lesson (first-day and daily grants).
	Remaining int
	// BalanceAfter is the credit balance after this lesson (credit grants).
	BalanceAfter int
	Reason       string
}

func (d AccessDecision) Granted() bool {
	return d.Kind != Denied
}

// AccessPolicy holds the allowance settings.
type AccessPolicy struct {
	FirstDayFree int
	DailyFree    int
	Location     *time.Location
	GrantTTL     time.Duration
}

type pendingGrant struct {
	userID   int64
	kind     GrantKind
	issuedAt time.Time
}

// AccessMeter decides whether a user may consume one more lesson and debits the chosen rule.
type AccessMeter struct {
	users   *repository.UserRepository
	billing Billing
	policy  AccessPolicy
	log     *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	pending map[uuid.UUID]pendingGrant
}

func NewAccessMeter(users *repository.UserRepository, billing Billing, policy AccessPolicy, log *zap.Logger) *AccessMeter {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	if policy.GrantTTL <= 0 {
		policy.GrantTTL = 15 * time.Minute
	}
	return &AccessMeter{
		users:   users,
		billing: billing,
		policy:  policy,
		log:     log.Named("access"),
		now:     time.Now,
		pending: make(map[uuid.UUID]pendingGrant),
	}
}

// CheckAccess evaluates the rules in order: first-day allowance, subscription,
// daily quota, credit balance. It writes nothing to storage; a granted
// decision stays redeemable through Consume until GrantTTL passes.
func (m *AccessMeter) CheckAccess(ctx context.Context, userID int64) (AccessDecision, error) {
	user, err := m.users.FindByTelegramID(ctx, userID)
	if err != nil {
		return AccessDecision{}, fmt.Errorf("load user: %w", err)
	}
	now := m.now()

	if now.Sub(user.CreatedAt) < 24*time.Hour && user.FreeLessonsUsed < m.policy.FirstDayFree {
		return m.grant(userID, AccessDecision{Kind: GrantFreeFirstDay, Remaining: m.policy.FirstDayFree - user.FreeLessonsUsed - 1}, now), nil
	}

	subscribed, err := m.billing.HasActiveSubscription(ctx, userID)
	if err != nil {
		return AccessDecision{}, fmt.Errorf("subscription: %w", err)
	}
	if subscribed {
		return m.grant(userID, AccessDecision{Kind: GrantSubscription}, now), nil
	}

	if m.policy.DailyFree > 0 {
		used := 0
		if user.DailyFreeDay == m.day(now) {
			used = user.DailyFreeUsed
		}
		if used < m.policy.DailyFree {
			return m.grant(userID, AccessDecision{Kind: GrantDailyFree, Remaining: m.policy.DailyFree - used - 1}, now), nil
		}
	}

	balance, err := m.billing.CreditBalance(ctx, userID)
	if err != nil {
		return AccessDecision{}, fmt.Errorf("credit balance: %w", err)
	}
	if balance > 0 {
		return m.grant(userID, AccessDecision{Kind: GrantCredit, BalanceAfter: balance - 1}, now), nil
	}

	return AccessDecision{Kind: Denied, UserID: userID, Reason: textDeniedReason}, nil
}

// Consume debits the rule named by a granted decision. Each grant is redeemable once.
// A lost race against a concurrent debit is reported as ErrAccessDenied.
func (m *AccessMeter) Consume(ctx context.Context, d AccessDecision) error {
	if !m.take(d) {
		return ErrNoGrant
	}

	switch d.Kind {
	case GrantFreeFirstDay:
		ok, err := m.users.ConsumeFreeLesson(ctx, d.UserID, m.policy.FirstDayFree)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAccessDenied
		}
	case GrantDailyFree:
		ok, err := m.users.ConsumeDailyFree(ctx, d.UserID, m.day(m.now()), m.policy.DailyFree)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAccessDenied
		}
	case GrantCredit:
		if err := m.billing.DebitCredit(ctx, d.UserID); err != nil {
			if errors.Is(err, repository.ErrInsufficientFunds) {
				return ErrAccessDenied
			}
			return err
		}
	case GrantSubscription:
	default:
		return ErrNoGrant
	}

	m.log.Debug("lesson debited", zap.Int64("user", d.UserID), zap.Stringer("grant", d.Kind))
	return nil
}

// Release drops a grant that will not be consumed.
func (m *AccessMeter) Release(d AccessDecision) {
	if !d.Granted() {
		return
	}
	m.mu.Lock()
	delete(m.pending, d.GrantID)
	m.mu.Unlock()
}

func (m *AccessMeter) grant(userID int64, d AccessDecision, now time.Time) AccessDecision {
	d.UserID = userID
	d.GrantID = uuid.New()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, g := range m.pending {
		if now.Sub(g.issuedAt) > m.policy.GrantTTL {
			delete(m.pending, id)
		}
	}
	m.pending[d.GrantID] = pendingGrant{userID: userID, kind: d.Kind, issuedAt: now}
	return d
}

func (m *AccessMeter) take(d AccessDecision) bool {
	if !d.Granted() || d.GrantID == uuid.Nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.pending[d.GrantID]
	if !ok {
		return false
	}
	delete(m.pending, d.GrantID)
	if g.userID != d.UserID || g.kind != d.Kind {
		return false
	}
	return m.now().Sub(g.issuedAt) <= m.policy.GrantTTL
}

func (m *AccessMeter) day(t time.Time) string {
	return t.In(m.policy.Location).Format(dayLayout)
}

const dayLayout = "2006-01-02"
