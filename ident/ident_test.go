package ident

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyDeterministic(t *testing.T) {
	a := Identify("repo-1", []string{"Checkout", "applies discount"})
	b := Identify("repo-1", []string{"Checkout", "applies discount"})
	assert.Equal(t, a, b, "same scope and path must produce the same identifier")
}

func TestIdentifyIsHexSHA256(t *testing.T) {
	id := Identify("repo-1", []string{"Checkout"})
	require.Len(t, id.String(), 64)
	_, err := hex.DecodeString(id.String())
	require.NoError(t, err)
}

func TestIdentifyOrderSensitive(t *testing.T) {
	a := Identify("repo-1", []string{"Checkout", "Cart"})
	b := Identify("repo-1", []string{"Cart", "Checkout"})
	assert.NotEqual(t, a, b, "reordering the path must change the identifier")
}

func TestIdentifyTitleSensitive(t *testing.T) {
	a := Identify("repo-1", []string{"Checkout", "applies discount"})
	b := Identify("repo-1", []string{"Checkout!", "applies discount"})
	assert.NotEqual(t, a, b, "changing any ancestor title must change the identifier")
}

func TestIdentifyScopeSensitive(t *testing.T) {
	a := Identify("repo-1", []string{"Checkout"})
	b := Identify("repo-2", []string{"Checkout"})
	assert.NotEqual(t, a, b, "identifiers from different scopes must not collide")
}

func TestIdentifyEmptyPath(t *testing.T) {
	id := Identify("repo-1", nil)
	require.Len(t, id.String(), 64)
	assert.Equal(t, Identify("repo-1", []string{}), id)
}

func TestIdentifyIsJoinedTitleChain(t *testing.T) {
	// Identity hashes the newline-joined chain, so a title containing the
	// join separator aliases the equivalent nested path.
	a := Identify("repo-1", []string{"A", "B"})
	b := Identify("repo-1", []string{"A\nB"})
	assert.Equal(t, a, b)
}
