package gitignore

import (
	"os"
	"path/filepath"
	"strings"

	gitconfig "github.com/go-git/go-git/v5/config"
)

// GlobalExcludesPath resolves git's global excludes file, honored
// alongside the .gitignore chain and .git/info/exclude: the
// core.excludesFile setting from the user's global git config when set,
// else the XDG default ($XDG_CONFIG_HOME/git/ignore, falling back to
// ~/.config/git/ignore). Returns "" when neither can be resolved; callers
// stat the result before loading, since the default path usually doesn't
// exist.
func GlobalExcludesPath() string {
	if cfg, err := gitconfig.LoadConfig(gitconfig.GlobalScope); err == nil {
		if v := cfg.Raw.Section("core").Option("excludesfile"); v != "" {
			return expandHome(v)
		}
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "git", "ignore")
}

// expandHome resolves a leading ~/ the way git does for core.excludesFile.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
