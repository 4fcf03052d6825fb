package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/provider-admission-api/internal/models"
)

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	actor := "admin-1"
	resourceID := "app-1"
	log := &models.AuditLog{
		UserID:     &actor,
		Action:     models.AuditActionApplicationTransition,
		Resource:   models.AuditResourceApplication,
		ResourceID: &resourceID,
		NewValues:  []byte(`{"status":"approved"}`),
	}
	require.NoError(t, NewAuditRepository(db).CreateAuditLog(context.Background(), log))
	assert.NotEmpty(t, log.ID)
	assert.False(t, log.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "resource", "resource_id", "old_values", "new_values", "ip_address", "user_agent", "created_at"}).
		AddRow("log-1", "admin-1", models.AuditActionApplicationTransition, models.AuditResourceApplication, "app-1", []byte(`{}`), []byte(`{}`), "system", "application-service", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs")).
		WithArgs(models.AuditResourceApplication, "app-1", "", 100).
		WillReturnRows(rows)

	logs, err := NewAuditRepository(db).List(context.Background(), models.AuditFilter{Resource: models.AuditResourceApplication, ResourceID: "app-1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "log-1", logs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
