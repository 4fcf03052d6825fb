package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/provider-admission-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "admission", nil)
	ctx := context.Background()

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "analytics:applications", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "analytics:applications", map[string]int{"total": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "analytics:*"))
	assert.NoError(t, repo.Close())
}

func TestCacheRepositoryKeyPrefix(t *testing.T) {
	assert.Equal(t, "admission:analytics:applications", NewCacheRepository(nil, "admission", nil).key("analytics:applications"))
	assert.Equal(t, "analytics", NewCacheRepository(nil, "", nil).key("analytics"))
}
