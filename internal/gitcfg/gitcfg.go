// internal/gitcfg/gitcfg.go
package gitcfg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gopasspw/gitconfig"
	"go.uber.org/zap"

	"github.com/ZachT1711/gittry/internal/errors"
)

// Store reads and writes repository configuration from the local config
// file and the per-worktree config.worktree sitting next to it.
type Store struct {
	gitDir string
	logger *zap.Logger
}

func New(gitDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{gitDir: gitDir, logger: logger}
}

func (s *Store) localPath() string {
	return filepath.Join(s.gitDir, "config")
}

func (s *Store) worktreePath() string {
	return filepath.Join(s.gitDir, "config.worktree")
}

// Get resolves key across the local and worktree scopes, worktree winning.
func (s *Store) Get(key string) string {
	cfg := gitconfig.New()
	cfg.SystemConfig = filepath.Join(s.gitDir, "config.system")
	cfg.GlobalConfig = ""
	cfg.LoadAll(s.gitDir)
	return cfg.Get(key)
}

// GetBool reads key as a boolean; missing keys are false.
func (s *Store) GetBool(key string) bool {
	return s.Get(key) == "true"
}

func (s *Store) set(path, key, value string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, nil, 0644); err != nil {
			return errors.ConfigWriteFailed(fmt.Sprintf("creating %s", path), err)
		}
	}

	cfg, err := gitconfig.LoadConfig(path)
	if err != nil {
		return errors.ConfigWriteFailed(fmt.Sprintf("loading %s", path), err)
	}
	if err := cfg.Set(key, value); err != nil {
		return errors.ConfigWriteFailed(fmt.Sprintf("setting %s", key), err)
	}
	if err := cfg.Write(); err != nil {
		return errors.ConfigWriteFailed(fmt.Sprintf("writing %s", path), err)
	}

	s.logger.Debug("config updated",
		zap.String("file", filepath.Base(path)),
		zap.String("key", key),
		zap.String("value", value))
	return nil
}

// SetLocal writes key into the repository-wide config file.
func (s *Store) SetLocal(key, value string) error {
	return s.set(s.localPath(), key, value)
}

// SetWorktree writes key into the per-worktree scope.
func (s *Store) SetWorktree(key, value string) error {
	return s.set(s.worktreePath(), key, value)
}
