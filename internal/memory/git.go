package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/rs/zerolog/log"
)

const gitMemoryFile = "memory.json"

// GitPersister stores the memory file in a git repository and commits
// every change, so the history of learned names can be audited.
type GitPersister struct {
	repo     *git.Repository
	repoPath string
	author   object.Signature
}

// NewGitPersister opens the repository at repoPath, initializing it when
// it does not exist yet
func NewGitPersister(repoPath string) (*GitPersister, error) {
	repo, err := git.PlainOpen(repoPath)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if err := os.MkdirAll(repoPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", repoPath, err)
		}
		repo, err = git.PlainInit(repoPath, false)
		if err == nil {
			log.Info().Str("path", repoPath).Msg("Initialized memory repository")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}

	return &GitPersister{
		repo:     repo,
		repoPath: repoPath,
		author:   object.Signature{Name: "Caia Extract", Email: "extract@caiatech.com"},
	}, nil
}

func (g *GitPersister) Name() string { return "git" }

func (g *GitPersister) Load(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(g.repoPath, gitMemoryFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read memory file: %w", err)
	}
	return decodeSnapshot(data)
}

func (g *GitPersister) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	w, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(g.repoPath, gitMemoryFile), data); err != nil {
		return err
	}
	if _, err := w.Add(gitMemoryFile); err != nil {
		return fmt.Errorf("failed to add memory file: %w", err)
	}

	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to read worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	author := g.author
	author.When = time.Now()
	commit, err := w.Commit(commitMessage(snap), &git.CommitOptions{Author: &author})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	log.Debug().Str("commit", commit.String()).Msg("Memory committed")
	return nil
}

// History returns commit hashes touching the memory file, newest first
func (g *GitPersister) History(ctx context.Context, limit int) ([]string, error) {
	file := gitMemoryFile
	iter, err := g.repo.Log(&git.LogOptions{FileName: &file})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer iter.Close()

	var hashes []string
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(hashes) >= limit {
			return storer.ErrStop
		}
		hashes = append(hashes, c.Hash.String())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

func commitMessage(snap *Snapshot) string {
	names := 0
	for _, list := range snap.Names {
		names += len(list)
	}
	return fmt.Sprintf("Update correction memory: %d names, %d corrections", names, len(snap.CorrectionLog))
}
