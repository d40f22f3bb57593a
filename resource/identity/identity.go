// Package identity derives the stable identifiers used to match resources
// between a desired and a current configuration.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
)

// HashVersion names the digest behind Hash. Changing the digest changes every
// derived child identifier, so callers persisting ids can compare versions.
const HashVersion = "sha1-v1"

// Resolve returns explicitID when set, the local key for top-level resources
// and a digest of "<parentID>.<localKey>" for children.
func Resolve(explicitID, parentID, localKey string) string {
	if explicitID != "" {
		return explicitID
	}
	if parentID == "" {
		return localKey
	}
	return Hash(parentID + "." + localKey)
}

// Hash returns the lowercase hex SHA-1 digest of value.
func Hash(value string) string {
	sum := sha1.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}
