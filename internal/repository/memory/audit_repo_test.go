package memory_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign/internal/domain"
	"docsign/internal/repository/memory"
)

func TestAuditRepo_ChainsPerDocument(t *testing.T) {
	repo := memory.NewAuditRepo()
	ctx := context.Background()
	docA, docB := uuid.New(), uuid.New()

	for _, doc := range []uuid.UUID{docA, docB, docA} {
		require.NoError(t, repo.Append(ctx, &domain.AuditEntry{
			ID: uuid.New(), DocumentID: doc, Action: domain.AuditViewed, ActorID: "u", ActorType: domain.ActorUser, Details: []byte("{}"),
		}))
	}

	chain, err := repo.ListChain(ctx, docA)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Empty(t, chain[0].PrevHash)
	assert.Equal(t, chain[0].EntryHash, chain[1].PrevHash)
	assert.Equal(t, chain[1].EntryHash, chain[1].ComputeHash(chain[1].PrevHash))

	other, err := repo.ListChain(ctx, docB)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Empty(t, other[0].PrevHash)

	counts, err := repo.CountByAction(ctx, docA)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.AuditViewed])

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
