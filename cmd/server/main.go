package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"echo-core/internal/app/server"
	corelog "echo-core/internal/core/log"
	"echo-core/internal/version"

	"github.com/spf13/cobra"
)

func main() {
	// 全局 panic recovery
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\nPANIC: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", string(debug.Stack()))
			os.Exit(2)
		}
	}()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd 创建根命令
func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "echo-server",
		Short: "Echo Core - line echo server with idle session expiry",
		Long: `Echo Core accepts TCP clients, greets them and echoes every byte back.
Sessions idle longer than the configured timeout are expired, and the
shutdown command ends every connected client at once.

Examples:
  echo-server                       # 使用当前目录下的 config.yaml
  echo-server -c ./my_config.yaml
  ECHO_SERVER_PORT=4100 echo-server`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configPath)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to configuration file")
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func runServer(configPath string) error {
	// 获取配置文件绝对路径
	absConfigPath, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	config, err := server.LoadConfig(absConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	srv, err := server.New(config, context.Background())
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// 日志初始化之后、服务启动之前显示横幅
	srv.DisplayStartupBanner(absConfigPath)

	if err := srv.Run(); err != nil {
		return fmt.Errorf("failed to run server: %w", err)
	}

	corelog.Info("Echo Core server exited gracefully")
	return nil
}

// newVersionCmd 显示版本信息
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Echo Core Server %s\n", version.GetVersion())
			fmt.Fprintln(out)
		},
	}
}
