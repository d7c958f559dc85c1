package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Mounkaila144/produit-sub000/pkg/config"
	"github.com/Mounkaila144/produit-sub000/pkg/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm/logger"
)

var tenantColumns = []string{
	"id", "name", "domain", "active", "expires_at", "plan_type", "owner_id",
	"contact_email", "contact_phone", "disabled_reason", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := database.Open(postgres.New(postgres.Config{Conn: sqlDB}), &config.DBConfig{LogLevel: logger.Silent})
	require.NoError(t, err)
	return NewPostgresStore(db), mock
}

func TestPostgresStore_GetTenant(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	expires := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "tenants" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows(tenantColumns).AddRow(
			id.String(), "Shop", "shop.test", true, expires, "premium", nil,
			"owner@shop.test", "+2250700000000", "", expires, expires))

	tenant, err := store.GetTenant(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, id, tenant.ID)
	assert.Equal(t, "shop.test", tenant.Domain)
	assert.True(t, tenant.Active)
	assert.Equal(t, "+2250700000000", tenant.Contact.Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTenantNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "tenants" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows(tenantColumns))

	_, err := store.GetTenant(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	// opaque identifiers never reach the database
	_, err = store.GetTenant(context.Background(), "shop-42")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListOverdue(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "tenants" WHERE active = $1 AND expires_at IS NOT NULL AND expires_at < $2 ORDER BY expires_at`)).
		WithArgs(true, now).
		WillReturnRows(sqlmock.NewRows(tenantColumns).AddRow(
			uuid.NewString(), "Shop", "shop.test", true, past, "basic", nil, "", "", "", past, past))

	tenants, err := store.ListOverdue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.Equal(t, past, *tenants[0].ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExpireTenantIsConditional(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	update := regexp.QuoteMeta(`UPDATE "tenants" SET "active"=$1,"disabled_reason"=$2,"updated_at"=$3 WHERE id = $4 AND active = $5 AND expires_at < $6`)

	t.Run("changed", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		changed, err := store.ExpireTenant(context.Background(), uuid.New(), now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("renewed concurrently", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		changed, err := store.ExpireTenant(context.Background(), uuid.New(), now)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(update).WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := store.ExpireTenant(context.Background(), uuid.New(), now)
		assert.ErrorContains(t, err, "connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_DeleteTenantWithUsers(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "users" WHERE tenant_id = $1`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := store.DeleteTenant(context.Background(), id.String())
	assert.ErrorIs(t, err, ErrHasDependents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountActive(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "tenants" WHERE active = $1`)).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := store.CountActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
