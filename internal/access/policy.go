// Package access decides what a session may see and do. Every role check in
// the service and report layers goes through a Policy.
package access

import (
	"context"
	"slices"

	"github.com/go-faster/errors"

	"kasirpos/backend/internal/domain"
)

var ErrForbidden = errors.New("forbidden")

type Policy interface {
	// AllowedOutlets returns the outlets visible to the session. all is true
	// when no outlet restriction applies within the session's merchant scope.
	AllowedOutlets(sess domain.Session) (ids []string, all bool)
	// MerchantScope returns the merchant the session is confined to. all is
	// true for platform operators.
	MerchantScope(sess domain.Session) (merchantID string, all bool)
	CanFilterByKasir(sess domain.Session) bool
	CanManage(sess domain.Session) bool
}

type SuperAdmin struct{}

func (SuperAdmin) AllowedOutlets(domain.Session) ([]string, bool) { return nil, true }
func (SuperAdmin) MerchantScope(domain.Session) (string, bool) { return "", true }
func (SuperAdmin) CanFilterByKasir(domain.Session) bool { return true }
func (SuperAdmin) CanManage(domain.Session) bool { return true }

type MerchantAdmin struct{}

func (MerchantAdmin) AllowedOutlets(domain.Session) ([]string, bool) { return nil, true }
func (MerchantAdmin) MerchantScope(sess domain.Session) (string, bool) {
	return sess.MerchantID, false
}
func (MerchantAdmin) CanFilterByKasir(domain.Session) bool { return true }
func (MerchantAdmin) CanManage(domain.Session) bool { return true }

// Kasir is confined to its assigned outlets. A kasir without assignments
// sees nothing.
type Kasir struct{}

func (Kasir) AllowedOutlets(sess domain.Session) ([]string, bool) {
	return slices.Clone(sess.OutletIDs), false
}
func (Kasir) MerchantScope(sess domain.Session) (string, bool) { return sess.MerchantID, false }
func (Kasir) CanFilterByKasir(domain.Session) bool { return false }
func (Kasir) CanManage(domain.Session) bool { return false }

type denied struct{}

func (denied) AllowedOutlets(domain.Session) ([]string, bool) { return nil, false }
func (denied) MerchantScope(domain.Session) (string, bool) { return "", false }
func (denied) CanFilterByKasir(domain.Session) bool { return false }
func (denied) CanManage(domain.Session) bool { return false }

// For picks the policy variant for the session role. Unknown roles get a
// policy that grants nothing.
func For(sess domain.Session) Policy {
	switch sess.Role {
	case domain.RoleSuperAdmin:
		return SuperAdmin{}
	case domain.RoleAdmin:
		return MerchantAdmin{}
	case domain.RoleKasir:
		return Kasir{}
	}
	return denied{}
}

// OutletVisible reports whether the session may see data of outletID.
func OutletVisible(p Policy, sess domain.Session, outletID string) bool {
	ids, all := p.AllowedOutlets(sess)
	if all {
		return true
	}
	return slices.Contains(ids, outletID)
}

// MerchantVisible reports whether the session may see data of merchantID.
func MerchantVisible(p Policy, sess domain.Session, merchantID string) bool {
	scope, all := p.MerchantScope(sess)
	if all {
		return true
	}
	return scope != "" && scope == merchantID
}

type sessionContextKey struct{}

func WithSession(ctx context.Context, sess domain.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

func SessionFrom(ctx context.Context) (domain.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(domain.Session)
	return sess, ok
}

// RequireManager returns the session in ctx when it may manage merchant data.
func RequireManager(ctx context.Context) (domain.Session, error) {
	sess, ok := SessionFrom(ctx)
	if !ok {
		return domain.Session{}, errors.Wrap(ErrForbidden, "no session")
	}
	if !For(sess).CanManage(sess) {
		return domain.Session{}, errors.Wrap(ErrForbidden, "manager role required")
	}
	return sess, nil
}

// ResolveMerchant returns the merchant a request operates on. Superadmins
// name it explicitly; everyone else is pinned to their own merchant.
func ResolveMerchant(sess domain.Session, requested string) (string, error) {
	p := For(sess)
	scope, all := p.MerchantScope(sess)
	if all {
		if requested == "" {
			return "", errors.Wrap(ErrForbidden, "merchant_id required")
		}
		return requested, nil
	}
	if scope == "" {
		return "", errors.Wrap(ErrForbidden, "session has no merchant")
	}
	if requested != "" && requested != scope {
		return "", errors.Wrap(ErrForbidden, "merchant outside session scope")
	}
	return scope, nil
}
