package config

import (
	"path/filepath"
	"strings"
)

// resolvePath anchors a relative runtime path at base, the directory holding
// the config file, so the server behaves the same from any working directory.
func resolvePath(base, raw string) string {
	target := strings.TrimSpace(raw)
	if target == "" {
		return ""
	}
	if filepath.IsAbs(target) || base == "" {
		return filepath.Clean(target)
	}
	return filepath.Join(base, target)
}
