package service

import (
	"context"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"kasirpos/backend/internal/access"
	"kasirpos/backend/internal/cache"
	"kasirpos/backend/internal/cart"
	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/poserr"
	"kasirpos/backend/internal/report"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/xid"
)

type Options struct {
	Logger              *zap.Logger
	SettingsCache       cache.SettingsCache
	SettingsCacheTTL    time.Duration
	DefaultTaxRate      float64
	DefaultDiscountRate float64
	Location            *time.Location
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

type Service struct {
	repo        store.Repository
	settings    cache.SettingsCache
	settingsTTL time.Duration
	defaults    domain.Settings
	loc         *time.Location
	now         func() time.Time
	lg          *zap.Logger
	audit       *zap.Logger

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// sessionState is the per-session working set: one cart and one report
// pipeline per merchant scope.
type sessionState struct {
	mu            sync.Mutex
	cart          *cart.Cart
	paymentMethod string
	pipelines     map[string]*report.Pipeline
}

func New(repo store.Repository, opts Options) *Service {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	settingsCache := opts.SettingsCache
	if settingsCache == nil {
		settingsCache = cache.NoopSettingsCache{}
	}
	ttl := opts.SettingsCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		repo:        repo,
		settings:    settingsCache,
		settingsTTL: ttl,
		defaults: domain.Settings{
			TaxRatePercent:      opts.DefaultTaxRate,
			DiscountRatePercent: opts.DefaultDiscountRate,
		},
		loc:      loc,
		now:      now,
		lg:       lg.Named("service"),
		audit:    lg.Named("audit"),
		sessions: make(map[string]*sessionState),
	}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// ResolveSession loads the account behind an identity token subject.
func (s *Service) ResolveSession(ctx context.Context, uid string) (domain.Session, error) {
	user, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		return domain.Session{}, err
	}
	if !user.Active {
		return domain.Session{}, errors.Wrap(access.ErrForbidden, "account is inactive")
	}
	return user.Session(), nil
}

func (s *Service) state(uid string) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[uid]
	if !ok {
		st = &sessionState{
			cart:          cart.New(),
			paymentMethod: domain.PaymentCash,
			pipelines:     make(map[string]*report.Pipeline),
		}
		s.sessions[uid] = st
	}
	return st
}

func requireSession(ctx context.Context) (domain.Session, error) {
	sess, ok := access.SessionFrom(ctx)
	if !ok {
		return domain.Session{}, errors.Wrap(access.ErrForbidden, "no session")
	}
	return sess, nil
}

// merchantSession returns the session and the merchant it operates on for
// operations any merchant member may run.
func merchantSession(ctx context.Context, requested string) (domain.Session, string, error) {
	sess, err := requireSession(ctx)
	if err != nil {
		return domain.Session{}, "", err
	}
	merchantID, err := access.ResolveMerchant(sess, requested)
	if err != nil {
		return domain.Session{}, "", err
	}
	return sess, merchantID, nil
}

// managerSession is merchantSession restricted to admins and superadmins.
func managerSession(ctx context.Context, requested string) (domain.Session, string, error) {
	sess, err := access.RequireManager(ctx)
	if err != nil {
		return domain.Session{}, "", err
	}
	merchantID, err := access.ResolveMerchant(sess, requested)
	if err != nil {
		return domain.Session{}, "", err
	}
	return sess, merchantID, nil
}

// requireMerchant makes sure the merchant exists before anything is written
// under its id.
func (s *Service) requireMerchant(ctx context.Context, merchantID string) error {
	if _, err := s.repo.GetMerchant(ctx, merchantID); err != nil {
		return errors.Wrapf(err, "merchant %s", merchantID)
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, merchantID string, action string, entityType string, entityID string, detail string) {
	sess, ok := access.SessionFrom(ctx)
	if !ok {
		sess = domain.Session{UID: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		MerchantID: merchantID,
		ActorUID:   sess.UID,
		ActorRole:  sess.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now().UTC(),
	}); err != nil {
		s.audit.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity", entityType+"/"+entityID),
			zap.Error(err),
		)
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, merchantID string, limit int) ([]domain.AuditLog, error) {
	_, merchantID, err := managerSession(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	logs, err := s.repo.ListAuditLogs(ctx, merchantID, limit)
	if err != nil {
		return nil, &poserr.FetchError{Resource: "audit logs", Err: err}
	}
	return logs, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", poserr.Invalid("email", "must be a valid email address")
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(strings.TrimSpace(password)) < 8 {
		return poserr.Invalid("password", "must be at least 8 characters")
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

func required(field string, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", poserr.Invalid(field, "is required")
	}
	return value, nil
}
