package version

import (
	"os"
	"strings"
)

var (
	// Version 版本号，构建时通过 -ldflags 注入；默认尝试读取 VERSION 文件
	Version = "dev"

	// BuildTime 构建时间，通过 -ldflags 注入
	BuildTime = ""

	// GitCommit Git 提交哈希，通过 -ldflags 注入
	GitCommit = ""
)

func init() {
	if Version == "dev" {
		Version = readVersionFromFile("VERSION")
	}
}

// readVersionFromFile 从 VERSION 文件读取版本号，失败时返回 "dev"
func readVersionFromFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "dev"
	}

	version := strings.TrimSpace(string(data))
	if version == "" {
		return "dev"
	}
	return strings.TrimPrefix(version, "v")
}

// GetVersion 获取完整版本信息
func GetVersion() string {
	version := "v" + Version
	if BuildTime != "" {
		version += " (built " + BuildTime + ")"
	}
	if GitCommit != "" {
		commit := GitCommit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		version += " commit " + commit
	}
	return version
}

// GetShortVersion 获取简短版本号
func GetShortVersion() string {
	return "v" + Version
}
