package statepaths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultStateDir      = "~/.ticketbot"
	defaultAuditFilename = "submissions.jsonl"
)

func FileStateDir() string {
	return resolveStateDir(viper.GetString("file_state_dir"))
}

// AuditPath returns audit.path when set, otherwise a file under the state dir.
func AuditPath() string {
	if p := strings.TrimSpace(viper.GetString("audit.path")); p != "" {
		return expandHomePath(p)
	}
	return filepath.Join(FileStateDir(), "audit", defaultAuditFilename)
}

func resolveStateDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = defaultStateDir
	}
	return filepath.Clean(expandHomePath(dir))
}

func expandHomePath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}
