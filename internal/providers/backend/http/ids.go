package http

import (
	"regexp"

	"github.com/crmarques/declagate/resource/identity"
)

var remoteIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

// remoteID maps a resource identity onto an admin API id. Identities the
// API rejects, such as names with spaces or joined SNI lists, are hashed.
func remoteID(resourceIdentity string) string {
	if remoteIDPattern.MatchString(resourceIdentity) {
		return resourceIdentity
	}
	return identity.Hash(resourceIdentity)
}

// implicitID reports whether id is exactly what remoteID would assign to a
// resource without an explicit id. Such ids are dropped on dump so that the
// dumped resource resolves to the same identity as its declaration.
func implicitID(id string, parentIdentity string, localKey string) bool {
	return id == remoteID(identity.Resolve("", parentIdentity, localKey))
}
