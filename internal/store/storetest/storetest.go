// Package storetest holds the behaviour every store.Repository backend must
// share. Backends call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/xid"
)

// Run exercises repo against a fresh merchant so it can share a database
// with other runs.
func Run(t *testing.T, repo store.Repository) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	now := time.Now().UTC().Truncate(time.Millisecond)
	merchantID := xid.New("it-merchant")

	_, err := repo.CreateMerchant(ctx, domain.Merchant{ID: merchantID, Name: "Toko Uji", Active: true, CreatedAt: now})
	require.NoError(t, err)
	got, err := repo.GetMerchant(ctx, merchantID)
	require.NoError(t, err)
	assert.Equal(t, "Toko Uji", got.Name)

	t.Run("users", func(t *testing.T) {
		uid := xid.New("it-user")
		email := uid + "@example.test"
		_, err := repo.CreateUser(ctx, domain.UserAccount{
			UID: uid, Email: email, DisplayName: "Kasir Uji", PasswordHash: "x",
			Role: domain.RoleKasir, MerchantID: merchantID, OutletIDs: []string{"o1", "o2"},
			Active: true, CreatedAt: now,
		})
		require.NoError(t, err)

		byEmail, err := repo.GetUserByEmail(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, uid, byEmail.UID)
		assert.Equal(t, []string{"o1", "o2"}, byEmail.OutletIDs)

		_, err = repo.CreateUser(ctx, domain.UserAccount{UID: xid.New("it-user"), Email: email, Role: domain.RoleKasir, CreatedAt: now})
		assert.ErrorIs(t, err, store.ErrConflict)

		kasirs, err := repo.ListUsers(ctx, merchantID, domain.RoleKasir)
		require.NoError(t, err)
		assert.Len(t, kasirs, 1)

		_, err = repo.GetUser(ctx, "missing-"+uid)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("outlets and suppliers", func(t *testing.T) {
		for _, name := range []string{"Outlet Timur", "Outlet Barat"} {
			_, err := repo.CreateOutlet(ctx, domain.Outlet{ID: xid.New("it-outlet"), MerchantID: merchantID, Name: name, Active: true, CreatedAt: now})
			require.NoError(t, err)
		}
		outlets, err := repo.ListOutlets(ctx, merchantID)
		require.NoError(t, err)
		require.Len(t, outlets, 2)
		assert.Equal(t, "Outlet Barat", outlets[0].Name)

		renamed := outlets[0]
		renamed.Name = "Outlet Utara"
		renamed.Active = false
		_, err = repo.UpdateOutlet(ctx, renamed)
		require.NoError(t, err)
		got, err := repo.GetOutlet(ctx, renamed.ID)
		require.NoError(t, err)
		assert.Equal(t, "Outlet Utara", got.Name)
		assert.False(t, got.Active)

		missing := renamed
		missing.ID = "missing-" + renamed.ID
		_, err = repo.UpdateOutlet(ctx, missing)
		assert.ErrorIs(t, err, store.ErrNotFound)

		sup := domain.Supplier{ID: xid.New("it-supplier"), MerchantID: merchantID, Name: "PT Kopi Nusantara", Phone: "0812", CreatedAt: now}
		_, err = repo.CreateSupplier(ctx, sup)
		require.NoError(t, err)
		gotSup, err := repo.GetSupplier(ctx, sup.ID)
		require.NoError(t, err)
		assert.Equal(t, "0812", gotSup.Phone)
		suppliers, err := repo.ListSuppliers(ctx, merchantID)
		require.NoError(t, err)
		assert.Len(t, suppliers, 1)
	})

	t.Run("products and stock", func(t *testing.T) {
		p := domain.Product{
			ID: xid.New("it-product"), MerchantID: merchantID, SKU: "SKU-1", Name: "Kopi",
			Price: 18000, Stock: 2, Active: true, CreatedAt: now, UpdatedAt: now,
		}
		_, err := repo.CreateProduct(ctx, p)
		require.NoError(t, err)

		dup := p
		dup.ID = xid.New("it-product")
		_, err = repo.CreateProduct(ctx, dup)
		assert.ErrorIs(t, err, store.ErrConflict)

		after, err := repo.AdjustStock(ctx, p.ID, -2)
		require.NoError(t, err)
		assert.Equal(t, 0, after.Stock)

		_, err = repo.AdjustStock(ctx, p.ID, -1)
		assert.ErrorIs(t, err, store.ErrInsufficientStock)

		_, err = repo.AdjustStock(ctx, "missing-"+p.ID, 1)
		assert.ErrorIs(t, err, store.ErrNotFound)

		p.Price = 20000
		p.Stock = 500
		updated, err := repo.UpdateProduct(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, 20000.0, updated.Price)
		assert.Equal(t, 0, updated.Stock)

		list, err := repo.ListProducts(ctx, merchantID)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("settings", func(t *testing.T) {
		_, err := repo.GetSettings(ctx, merchantID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, repo.SaveSettings(ctx, domain.Settings{MerchantID: merchantID, TaxRatePercent: 11, UpdatedAt: now}))
		require.NoError(t, repo.SaveSettings(ctx, domain.Settings{MerchantID: merchantID, TaxRatePercent: 10, DiscountRatePercent: 5, UpdatedAt: now}))

		st, err := repo.GetSettings(ctx, merchantID)
		require.NoError(t, err)
		assert.Equal(t, 10.0, st.TaxRatePercent)
		assert.Equal(t, 5.0, st.DiscountRatePercent)
	})

	t.Run("transactions newest first", func(t *testing.T) {
		for i, outlet := range []string{"o1", "o2", "o1"} {
			_, err := repo.CreateTransaction(ctx, domain.Transaction{
				ID:            xid.New("it-trx"),
				MerchantID:    merchantID,
				OutletID:      outlet,
				KasirID:       "k1",
				PaymentMethod: domain.PaymentCash,
				Items:         []domain.TransactionLine{{ProductID: "p1", Name: "Kopi", UnitPrice: 1000, Quantity: i + 1, LineTotal: float64(1000 * (i + 1))}},
				TotalAmount:   float64(1000 * (i + 1)),
				Timestamp:     now.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
		}

		all, err := repo.ListTransactions(ctx, domain.TransactionQuery{MerchantID: merchantID})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, 3000.0, all[0].TotalAmount)
		assert.Equal(t, 1000.0, all[2].TotalAmount)
		require.Len(t, all[0].Items, 1)
		assert.Equal(t, 3, all[0].Items[0].Quantity)

		o1, err := repo.ListTransactions(ctx, domain.TransactionQuery{MerchantID: merchantID, OutletID: "o1"})
		require.NoError(t, err)
		assert.Len(t, o1, 2)

		one, err := repo.GetTransaction(ctx, all[1].ID)
		require.NoError(t, err)
		assert.Equal(t, "o2", one.OutletID)
	})

	t.Run("audit logs", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.CreateAuditLog(ctx, domain.AuditLog{
				ID: xid.New("it-audit"), MerchantID: merchantID, ActorUID: "u1", ActorRole: domain.RoleAdmin,
				Action: "test", EntityType: "merchant", EntityID: merchantID, CreatedAt: now.Add(time.Duration(i) * time.Second),
			}))
		}
		logs, err := repo.ListAuditLogs(ctx, merchantID, 2)
		require.NoError(t, err)
		assert.Len(t, logs, 2)
		assert.True(t, logs[0].CreatedAt.After(logs[1].CreatedAt))
	})
}
