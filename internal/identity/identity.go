// Package identity computes the project identity that scopes every
// observation, session, and graph node to the repository the user is
// currently working in.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Length is the number of hex characters kept from the SHA-256 digest.
const Length = 16

// ForPath returns the project identity for workDir: the first 16 hex
// characters of the SHA-256 digest of its canonical (symlink-resolved,
// absolute) path. Two processes started from the same repository, even via
// different symlinks or relative paths, resolve to the same identity.
func ForPath(workDir string) (string, error) {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Directory may legitimately not exist yet (e.g. a fresh clone
		// before first write); fall back to the absolute, cleaned path.
		resolved = filepath.Clean(abs)
	}
	sum := sha256.Sum256([]byte(resolved))
	return hex.EncodeToString(sum[:])[:Length], nil
}
