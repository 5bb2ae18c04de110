package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GitConfig configures a Git policy source.
type GitConfig struct {
	// Repository is the remote URL.
	Repository string `yaml:"repository"`

	// Branch is the branch holding the policy documents.
	Branch string `yaml:"branch"`

	// Subdir optionally restricts loading to a subdirectory of the
	// worktree.
	Subdir string `yaml:"subdir"`

	// LocalPath is the clone destination. Defaults under os.TempDir.
	LocalPath string `yaml:"local_path"`

	// Timeout bounds clone and pull operations.
	Timeout time.Duration `yaml:"timeout"`

	// Username and Token configure HTTP basic auth. Empty means
	// anonymous.
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

// CommitInfo is the provenance of the worktree HEAD, attached to every
// policy published from this source.
type CommitInfo struct {
	SHA     string    `json:"sha"`
	Author  string    `json:"author"`
	Email   string    `json:"email"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// GitSource syncs a Git repository of policy documents into the policy
// store, stamping each publication with the HEAD commit SHA.
type GitSource struct {
	config *GitConfig
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewGitSource creates a Git policy source.
func NewGitSource(cfg *GitConfig, logger *slog.Logger) (*GitSource, error) {
	if cfg == nil || cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = filepath.Join(os.TempDir(), "themis-policies")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GitSource{
		config: cfg,
		logger: logger.With("component", "policy.git"),
	}, nil
}

// Open clones the repository, or opens an existing clone at the local
// path.
func (g *GitSource) Open(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := os.Stat(filepath.Join(g.config.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(g.config.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open existing clone: %w", err)
		}
		g.repo = repo
		return nil
	}

	if err := os.MkdirAll(g.config.LocalPath, 0o755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, g.config.LocalPath, false, &gogit.CloneOptions{
		URL:           g.config.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(g.config.Branch),
		SingleBranch:  true,
		Auth:          g.auth(),
	})
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", g.config.Repository, err)
	}
	g.repo = repo

	g.logger.Info("policy repository cloned", "url", g.config.Repository, "branch", g.config.Branch)
	return nil
}

// Refresh pulls the branch. It reports whether HEAD moved.
func (g *GitSource) Refresh(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.repo == nil {
		return false, fmt.Errorf("repository not opened")
	}

	before, err := g.repo.Head()
	if err != nil {
		return false, fmt.Errorf("failed to read HEAD: %w", err)
	}

	worktree, err := g.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName: "origin",
		Auth:       g.auth(),
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return false, fmt.Errorf("failed to pull: %w", err)
	}

	after, err := g.repo.Head()
	if err != nil {
		return false, fmt.Errorf("failed to read HEAD after pull: %w", err)
	}

	moved := before.Hash() != after.Hash()
	if moved {
		g.logger.Info("policy repository updated",
			"from", before.Hash().String(),
			"to", after.Hash().String(),
		)
	}
	return moved, nil
}

// Head returns the provenance of the current HEAD commit.
func (g *GitSource) Head() (*CommitInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.repo == nil {
		return nil, fmt.Errorf("repository not opened")
	}

	ref, err := g.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD: %w", err)
	}
	commit, err := g.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", ref.Hash(), err)
	}
	return &CommitInfo{
		SHA:     commit.Hash.String(),
		Author:  commit.Author.Name,
		Email:   commit.Author.Email,
		Time:    commit.Author.When,
		Message: commit.Message,
	}, nil
}

// Sync refreshes the clone and publishes changed policies with HEAD
// commit provenance. It returns the number of policies published.
func (g *GitSource) Sync(ctx context.Context, pub Publisher, actor string) (int, error) {
	if _, err := g.Refresh(ctx); err != nil {
		return 0, err
	}
	head, err := g.Head()
	if err != nil {
		return 0, err
	}

	dir := g.config.LocalPath
	if g.config.Subdir != "" {
		dir = filepath.Join(dir, g.config.Subdir)
	}
	fileSource, err := NewFileSource(dir, g.logger)
	if err != nil {
		return 0, err
	}
	return fileSource.Sync(ctx, pub, actor, head.SHA)
}

func (g *GitSource) auth() *http.BasicAuth {
	if g.config.Token == "" {
		return nil
	}
	username := g.config.Username
	if username == "" {
		username = "git"
	}
	return &http.BasicAuth{Username: username, Password: g.config.Token}
}
