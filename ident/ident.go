// Package ident derives stable content-hash identifiers for suites and tests.
//
// Identity is a function of the scope id and the ancestor-qualified title
// chain, so two processes discovering the same tree always agree on every
// identifier regardless of traversal object identity.
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/ethereum-optimism/infra/test-agent/types"
)

// Identify computes the identifier for a node with the given scope id and
// root-to-leaf title path. It is pure and order-sensitive: reordering the
// path changes the identifier, because location in the hierarchy is part of
// identity. An empty path is the degenerate root identity and still hashes.
func Identify(scopeID string, path []string) types.Identifier {
	sum := sha256.Sum256([]byte(scopeID + "\n" + strings.Join(path, "\n")))
	return types.Identifier(hex.EncodeToString(sum[:]))
}
