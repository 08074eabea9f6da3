package utils

import (
	"os"
	"path/filepath"
	"strings"

	coreerrors "echo-core/internal/core/errors"
)

// ExpandPath 展开路径，支持 ~ 和相对路径
// 例如：~/logs/echo.log -> /home/user/logs/echo.log
//
//	./logs/echo.log -> /current/dir/logs/echo.log
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", coreerrors.New(coreerrors.CodeInvalidParam, "path is empty")
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", coreerrors.Wrap(err, coreerrors.CodeInternal, "failed to get home directory")
		}
		path = filepath.Join(homeDir, strings.TrimPrefix(path[1:], "/"))
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", coreerrors.Wrap(err, coreerrors.CodeInternal, "failed to convert to absolute path")
		}
		path = absPath
	}

	return path, nil
}
