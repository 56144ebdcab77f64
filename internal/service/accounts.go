package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"kasirpos/backend/internal/access"
	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/poserr"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/xid"
)

// EnsureSuperAdmin creates the platform operator account on first start.
// An existing account with the same email is left untouched.
func (s *Service) EnsureSuperAdmin(ctx context.Context, email string, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return errors.Wrap(err, "lookup superadmin")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.repo.CreateUser(ctx, domain.UserAccount{
		UID:          xid.New("user"),
		Email:        email,
		DisplayName:  "Platform Admin",
		PasswordHash: hash,
		Role:         domain.RoleSuperAdmin,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil && !errors.Is(err, store.ErrConflict) {
		return errors.Wrap(err, "create superadmin")
	}
	s.lg.Info("superadmin account ready", zap.String("email", email))
	return nil
}

// OnboardMerchant creates a merchant, its default settings and its first
// admin account. Only platform operators may call it.
func (s *Service) OnboardMerchant(ctx context.Context, req domain.MerchantCreateRequest) (domain.MerchantOnboardResponse, error) {
	sess, err := requireSession(ctx)
	if err != nil {
		return domain.MerchantOnboardResponse{}, err
	}
	if _, all := access.For(sess).MerchantScope(sess); !all {
		return domain.MerchantOnboardResponse{}, errors.Wrap(access.ErrForbidden, "superadmin role required")
	}

	name, err := required("name", req.Name)
	if err != nil {
		return domain.MerchantOnboardResponse{}, err
	}
	email, err := normalizeEmail(req.AdminEmail)
	if err != nil {
		return domain.MerchantOnboardResponse{}, err
	}
	adminName, err := required("admin_name", req.AdminName)
	if err != nil {
		return domain.MerchantOnboardResponse{}, err
	}
	if err := validatePassword(req.AdminPassword); err != nil {
		return domain.MerchantOnboardResponse{}, err
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return domain.MerchantOnboardResponse{}, errors.Wrap(store.ErrConflict, "admin email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.MerchantOnboardResponse{}, &poserr.FetchError{Resource: "users", Err: err}
	}

	hash, err := hashPassword(req.AdminPassword)
	if err != nil {
		return domain.MerchantOnboardResponse{}, err
	}

	now := s.now().UTC()
	merchant, err := s.repo.CreateMerchant(ctx, domain.Merchant{
		ID:         xid.New("merchant"),
		Name:       name,
		OwnerEmail: email,
		Phone:      strings.TrimSpace(req.Phone),
		Address:    strings.TrimSpace(req.Address),
		Active:     true,
		CreatedAt:  now,
	})
	if err != nil {
		return domain.MerchantOnboardResponse{}, &poserr.WriteError{Op: "create merchant", Err: err}
	}

	settings := s.defaults
	settings.MerchantID = merchant.ID
	settings.UpdatedAt = now
	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		s.lg.Warn("failed to save default settings", zap.String("merchant_id", merchant.ID), zap.Error(err))
	}

	admin, err := s.repo.CreateUser(ctx, domain.UserAccount{
		UID:          xid.New("user"),
		Email:        email,
		DisplayName:  adminName,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		MerchantID:   merchant.ID,
		Active:       true,
		CreatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.MerchantOnboardResponse{}, errors.Wrap(err, "admin email already registered")
		}
		return domain.MerchantOnboardResponse{}, &poserr.WriteError{Op: "create merchant admin", Err: err}
	}

	s.logAudit(ctx, merchant.ID, "merchant_onboard", "merchant", merchant.ID, fmt.Sprintf("name=%s,admin=%s", merchant.Name, email))
	return domain.MerchantOnboardResponse{Merchant: *merchant, Admin: *admin}, nil
}

func (s *Service) ListMerchants(ctx context.Context) ([]domain.Merchant, error) {
	sess, err := requireSession(ctx)
	if err != nil {
		return nil, err
	}
	scope, all := access.For(sess).MerchantScope(sess)
	if all {
		merchants, err := s.repo.ListMerchants(ctx)
		if err != nil {
			return nil, &poserr.FetchError{Resource: "merchants", Err: err}
		}
		return merchants, nil
	}
	if scope == "" {
		return []domain.Merchant{}, nil
	}
	merchant, err := s.repo.GetMerchant(ctx, scope)
	if err != nil {
		return nil, &poserr.FetchError{Resource: "merchants", Err: err}
	}
	return []domain.Merchant{*merchant}, nil
}

// CreateKasir registers a kasir account assigned to outlets of the merchant.
func (s *Service) CreateKasir(ctx context.Context, merchantID string, req domain.KasirCreateRequest) (domain.UserAccount, error) {
	_, merchantID, err := managerSession(ctx, merchantID)
	if err != nil {
		return domain.UserAccount{}, err
	}
	if err := s.requireMerchant(ctx, merchantID); err != nil {
		return domain.UserAccount{}, err
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.UserAccount{}, err
	}
	displayName, err := required("display_name", req.DisplayName)
	if err != nil {
		return domain.UserAccount{}, err
	}
	if err := validatePassword(req.Password); err != nil {
		return domain.UserAccount{}, err
	}

	outletIDs := make([]string, 0, len(req.OutletIDs))
	for _, id := range req.OutletIDs {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(outletIDs, id) {
			continue
		}
		outlet, err := s.repo.GetOutlet(ctx, id)
		if err != nil || outlet.MerchantID != merchantID {
			return domain.UserAccount{}, poserr.Invalid("outlet_ids", fmt.Sprintf("unknown outlet %q", id))
		}
		outletIDs = append(outletIDs, id)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserAccount{}, err
	}

	created, err := s.repo.CreateUser(ctx, domain.UserAccount{
		UID:          xid.New("user"),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         domain.RoleKasir,
		MerchantID:   merchantID,
		OutletIDs:    outletIDs,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.UserAccount{}, errors.Wrap(err, "email already registered")
		}
		return domain.UserAccount{}, &poserr.WriteError{Op: "create kasir", Err: err}
	}

	s.logAudit(ctx, merchantID, "kasir_create", "user", created.UID, fmt.Sprintf("email=%s,outlets=%s", email, strings.Join(outletIDs, "|")))
	return *created, nil
}

func (s *Service) ListKasirs(ctx context.Context, merchantID string) ([]domain.UserAccount, error) {
	_, merchantID, err := managerSession(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	kasirs, err := s.repo.ListUsers(ctx, merchantID, domain.RoleKasir)
	if err != nil {
		return nil, &poserr.FetchError{Resource: "kasirs", Err: err}
	}
	return kasirs, nil
}
