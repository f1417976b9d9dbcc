package services

import (
	"testing"
	"time"

	"whalewatch-backend/models"
	"whalewatch-backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wallet(id, addr, ns string, primary bool, created time.Time) models.Wallet {
	return models.Wallet{
		Id:             id,
		Address:        addr,
		ChainNamespace: ns,
		IsPrimary:      primary,
		CreatedAt:      created,
	}
}

func testWallets() []models.Wallet {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.Wallet{
		wallet("a", "0xAAA1111111111111111111111111111111111111", "eip155:1", true, t1),
		wallet("b", "0xBBB2222222222222222222222222222222222222", "eip155:137", false, t1.Add(time.Hour)),
		wallet("c", "0xAAA1111111111111111111111111111111111111", "eip155:137", false, t1.Add(2*time.Hour)),
	}
}

func TestResolveSelectionNoWallets(t *testing.T) {
	sel := ResolveSelection("0xabc", "eip155:1", nil)
	assert.Nil(t, sel.Address)
	assert.Equal(t, utils.DefaultNetwork, sel.Network)
	assert.Equal(t, "default", sel.Source)
}

func TestResolveSelectionAdoptsValidHint(t *testing.T) {
	ws := testWallets()
	// case-insensitive address match, exact network match
	sel := ResolveSelection("0xbbb2222222222222222222222222222222222222", "eip155:137", ws)
	require.NotNil(t, sel.Address)
	assert.Equal(t, "0xBBB2222222222222222222222222222222222222", *sel.Address)
	assert.Equal(t, "eip155:137", sel.Network)
	assert.Equal(t, "cached", sel.Source)
}

func TestResolveSelectionPurgesStaleHintFallsBackToPrimary(t *testing.T) {
	ws := testWallets()
	sel := ResolveSelection("0xDEAD000000000000000000000000000000000000", "eip155:1", ws)
	require.NotNil(t, sel.Address)
	assert.Equal(t, "0xAAA1111111111111111111111111111111111111", *sel.Address)
	assert.Equal(t, "eip155:1", sel.Network)
	assert.Equal(t, "primary", sel.Source)
}

func TestResolveSelectionWrongNetworkHintIsStale(t *testing.T) {
	ws := testWallets()
	// address exists, but not on that network -> hint discarded
	sel := ResolveSelection("0xBBB2222222222222222222222222222222222222", "eip155:1", ws)
	assert.Equal(t, "primary", sel.Source)
}

func TestResolveSelectionFallsBackToCanonicalFirstWithoutPrimary(t *testing.T) {
	ws := testWallets()
	for i := range ws {
		ws[i].IsPrimary = false
	}
	sel := ResolveSelection("", "", ws)
	require.NotNil(t, sel.Address)
	// newest created wins in canonical order
	assert.Equal(t, "0xAAA1111111111111111111111111111111111111", *sel.Address)
	assert.Equal(t, "eip155:137", sel.Network)
	assert.Equal(t, "first", sel.Source)
}

func TestResolveSelectionDeterministicAndIdempotent(t *testing.T) {
	ws := testWallets()
	first := ResolveSelection("0xnope", "eip155:56", ws)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ResolveSelection("0xnope", "eip155:56", ws))
	}
}

func TestSwitchNetworkKeepsAddressWhenPresentOnTarget(t *testing.T) {
	ws := testWallets()
	// 0xAAA... exists on both eip155:1 and eip155:137
	sel := SwitchNetwork("0xaaa1111111111111111111111111111111111111", "eip155:137", ws)
	require.NotNil(t, sel.Address)
	assert.Equal(t, "0xAAA1111111111111111111111111111111111111", *sel.Address)
	assert.Equal(t, "eip155:137", sel.Network)
}

func TestSwitchNetworkFallsBackWhenAddressMissingOnTarget(t *testing.T) {
	ws := testWallets()
	// 0xBBB... only exists on eip155:137; switching to eip155:1 re-applies
	// fallback among that network's wallets
	sel := SwitchNetwork("0xBBB2222222222222222222222222222222222222", "eip155:1", ws)
	require.NotNil(t, sel.Address)
	assert.Equal(t, "0xAAA1111111111111111111111111111111111111", *sel.Address)
	assert.Equal(t, "eip155:1", sel.Network)
}

func TestSwitchNetworkNoWalletsOnTarget(t *testing.T) {
	ws := testWallets()
	sel := SwitchNetwork("0xAAA1111111111111111111111111111111111111", "eip155:56", ws)
	assert.Nil(t, sel.Address)
	// the chosen network sticks even with nothing on it
	assert.Equal(t, "eip155:56", sel.Network)
	assert.Equal(t, "default", sel.Source)
}
