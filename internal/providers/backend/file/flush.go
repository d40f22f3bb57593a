package file

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/crmarques/declagate/internal/providers/shared/fsutil"
	"github.com/crmarques/declagate/yamlutil"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-logr/logr"
	"github.com/opencontainers/go-digest"
)

const commitMessage = "declagate: update gateway state"

// Flush writes pending changes. It fails with a conflict error when the file
// changed on disk since it was loaded.
func (s *StateStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	_, onDisk, err := readState(s.path)
	if err != nil {
		return err
	}
	if onDisk != s.digest {
		return conflictError(fmt.Sprintf("state file %q changed since it was read (expected %s, found %s)", s.path, displayDigest(s.digest), displayDigest(onDisk)), nil)
	}

	encoded, err := yamlutil.MarshalWithIndent(map[string]any(s.state), 2)
	if err != nil {
		return internalError("failed to encode state", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, encoded, 0o644); err != nil {
		return internalError("failed to write state file", err)
	}
	s.digest = digest.FromBytes(encoded)
	s.dirty = false

	logr.FromContextOrDiscard(ctx).V(1).Info("state file written", "path", s.path, "digest", s.digest.String())

	if !s.git {
		return nil
	}
	return commitState(ctx, s.path)
}

// commitState stages and commits the state file in the enclosing worktree.
func commitState(ctx context.Context, statePath string) error {
	repo, err := gogit.PlainOpenWithOptions(filepath.Dir(statePath), &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return validationError(fmt.Sprintf("backend.file.git is set but %q is not inside a git worktree", statePath), err)
		}
		return internalError("failed to open git repository", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return internalError("failed to open git worktree", err)
	}

	relativePath, err := fsutil.RelUnderRoot(worktree.Filesystem.Root(), statePath)
	if err != nil {
		return internalError("failed to locate state file in git worktree", err)
	}

	if _, err := worktree.Add(relativePath); err != nil {
		return internalError("failed to stage state file", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return internalError("failed to inspect git worktree status", err)
	}
	if fileStatus := status.File(relativePath); fileStatus.Staging == gogit.Unmodified {
		return nil
	}

	hash, err := worktree.Commit(commitMessage, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "declagate",
			Email: "declagate@local",
			When:  time.Now(),
		},
	})
	if err != nil {
		return internalError("failed to commit state file", err)
	}

	logr.FromContextOrDiscard(ctx).V(1).Info("state file committed", "commit", hash.String())
	return nil
}

func displayDigest(value digest.Digest) string {
	if value == "" {
		return "<absent>"
	}
	return value.String()
}
