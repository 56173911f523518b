package walletmanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clawlet-dev/clawlet/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	s, err := store.Load(t.TempDir())
	require.NoError(t, err)
	return New(s, nil)
}

func TestCreateMakesWalletActive(t *testing.T) {
	m := newTestManager(t)

	summary, err := m.Create(context.Background(), CreateRequest{Kind: store.AdapterLocalKey, Label: "First"})
	require.NoError(t, err)
	require.NotEmpty(t, summary.Address)

	summaries, activeID, err := m.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.NotNil(t, activeID)
	require.Equal(t, summary.ID, *activeID)
}

func TestRemoveActiveFallsBackToFirstRemaining(t *testing.T) {
	m := newTestManager(t)

	first, err := m.Create(context.Background(), CreateRequest{Kind: store.AdapterLocalKey, Label: "A"})
	require.NoError(t, err)
	second, err := m.Create(context.Background(), CreateRequest{Kind: store.AdapterLocalKey, Label: "B"})
	require.NoError(t, err)

	// second is active after creation; removing it should fall back to first.
	err = m.Remove(second.ID)
	require.NoError(t, err)

	_, activeID, err := m.List()
	require.NoError(t, err)
	require.Equal(t, first.ID, *activeID)
}

func TestFreezeUnfreeze(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create(context.Background(), CreateRequest{Kind: store.AdapterLocalKey, Label: "A"})
	require.NoError(t, err)

	frozen, err := m.Freeze(true)
	require.NoError(t, err)
	require.True(t, frozen)

	summaries, _, err := m.List()
	require.NoError(t, err)
	require.True(t, summaries[0].Frozen)
}

func TestSetAgentIdentityRequiresName(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create(context.Background(), CreateRequest{Kind: store.AdapterLocalKey, Label: "A"})
	require.NoError(t, err)

	_, err = m.SetAgentIdentity(IdentityPatch{})
	require.Error(t, err)

	identity, err := m.SetAgentIdentity(IdentityPatch{Name: "agent-007"})
	require.NoError(t, err)
	require.Equal(t, "agent-007", identity.Name)
}
