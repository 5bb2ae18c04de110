package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mercator-hq/themis/pkg/governance"
	"mercator-hq/themis/pkg/policy"
	"mercator-hq/themis/pkg/policy/store"
)

// Publisher is the slice of the policy store a source needs: publication
// with provenance, and the active version for staleness checks.
type Publisher interface {
	PublishFrom(ctx context.Context, p *policy.Policy, actor, commitSHA string) (governance.PolicyRef, error)
	Active(ctx context.Context, scope governance.Scope, name string) (*policy.Policy, error)
}

// FileSource loads policy documents from a directory tree of YAML files.
type FileSource struct {
	dir    string
	logger *slog.Logger
}

// NewFileSource creates a file source rooted at dir.
func NewFileSource(dir string, logger *slog.Logger) (*FileSource, error) {
	if dir == "" {
		return nil, fmt.Errorf("policy directory cannot be empty")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat policy directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("policy path %q is not a directory", dir)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		dir:    dir,
		logger: logger.With("component", "policy.source"),
	}, nil
}

// Dir returns the directory the source reads from.
func (s *FileSource) Dir() string {
	return s.dir
}

// Load parses every .yaml/.yml file under the directory, hidden files
// skipped, and returns the policies in deterministic path order. A
// malformed document fails the whole load: partial policy sets are worse
// than stale ones.
func (s *FileSource) Load(ctx context.Context) ([]*policy.Policy, error) {
	var paths []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && path != s.dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk policy directory: %w", err)
	}
	sort.Strings(paths)

	var policies []*policy.Policy
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		parsed, err := policy.ParseDocument(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		policies = append(policies, parsed...)
	}

	s.logger.Debug("policies loaded", "dir", s.dir, "files", len(paths), "policies", len(policies))
	return policies, nil
}

// Sync publishes every loaded policy whose version is newer than the
// active one. Already-published versions are skipped silently so repeated
// syncs of an unchanged directory are no-ops. One policy failing to
// publish does not abort the rest; the errors are joined.
func (s *FileSource) Sync(ctx context.Context, pub Publisher, actor, commitSHA string) (int, error) {
	policies, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}

	published := 0
	var errs []error
	for _, p := range policies {
		stale, err := isStale(ctx, pub, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if stale {
			continue
		}
		ref, err := pub.PublishFrom(ctx, p, actor, commitSHA)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to publish %s/%s: %w", p.Scope, p.Name, err))
			continue
		}
		published++
		s.logger.Info("policy published", "ref", ref.String(), "commit", commitSHA)
	}
	return published, errors.Join(errs...)
}

func isStale(ctx context.Context, pub Publisher, p *policy.Policy) (bool, error) {
	active, err := pub.Active(ctx, p.Scope, p.Name)
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up active version of %s/%s: %w", p.Scope, p.Name, err)
	}
	return active != nil && active.Version >= p.Version, nil
}
