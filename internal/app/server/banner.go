package server

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"echo-core/internal/version"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const (
	bannerWidth = 60
)

var (
	bannerCyan    = color.New(color.FgCyan).SprintFunc()
	bannerBlue    = color.New(color.FgBlue).SprintFunc()
	bannerMagenta = color.New(color.FgMagenta).SprintFunc()
	bannerBold    = color.New(color.Bold).SprintFunc()
	bannerGreen   = color.New(color.FgGreen).SprintFunc()
	bannerFaint   = color.New(color.Faint).SprintFunc()
)

// DisplayStartupBanner 显示启动信息横幅
func (s *Server) DisplayStartupBanner(configPath string) {
	s.writeBanner(os.Stdout, configPath, isatty.IsTerminal(os.Stdout.Fd()))
}

func (s *Server) writeBanner(w io.Writer, configPath string, terminal bool) {
	// 输出被重定向时不清屏
	if terminal {
		fmt.Fprint(w, "\033[2J\033[H")
	}
	displayLogo(w)
	displayServerInfo(w, s, configPath)
	displayManagementAPI(w, s)
	displayFooter(w)
}

// displayLogo 显示 Logo
func displayLogo(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", bannerCyan(" ___ ___ _  _  ___  "))
	fmt.Fprintf(w, "  %s    %s\n", bannerCyan("| __/ __| || |/ _ \\ "), bannerBold("Echo Core Server"))
	fmt.Fprintf(w, "  %s\n", bannerBlue("| _| (__| __ | (_) |"))
	fmt.Fprintf(w, "  %s    %s\n", bannerMagenta("|___\\___|_||_|\\___/ "), bannerFaint("Version "+version.GetShortVersion()))
	fmt.Fprintln(w)
}

// displayServerInfo 显示服务器信息
func displayServerInfo(w io.Writer, s *Server, configPath string) {
	fmt.Fprintln(w, bannerBold("  Server Information"))
	fmt.Fprintln(w, bannerFaint("  "+strings.Repeat("─", bannerWidth)))

	evict := "linger until idle timeout"
	if s.config.Session.EvictOnClose {
		evict = "evict on close"
	}

	infoRows := []struct {
		label string
		value string
	}{
		{"Config File", configPath},
		{"Start Time", time.Now().Format("2006-01-02 15:04:05")},
		{"TCP Listener", s.listenAddrString()},
		{"Idle Timeout", s.config.IdleTimeout().String()},
		{"Closed Sessions", evict},
		{"Log Level", s.config.Log.Level},
	}

	for _, row := range infoRows {
		fmt.Fprintf(w, "  %-18s %s\n", bannerBold(row.label+":"), row.value)
	}
	fmt.Fprintln(w)
}

// displayManagementAPI 显示管理 API 信息
func displayManagementAPI(w io.Writer, s *Server) {
	fmt.Fprintln(w, bannerBold("  Management API"))
	fmt.Fprintln(w, bannerFaint("  "+strings.Repeat("─", bannerWidth)))

	if !s.config.ManagementAPI.Enabled {
		fmt.Fprintf(w, "  %-18s %s\n", bannerBold("Status:"), bannerFaint("✗ Disabled"))
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "  %-18s %s\n", bannerBold("Status:"), bannerGreen("✓ Enabled"))
	fmt.Fprintf(w, "  %-18s %s\n", bannerBold("Address:"), "http://"+s.config.ManagementAPI.ListenAddr)
	if rl := s.config.ManagementAPI.RateLimit; rl.Enabled {
		fmt.Fprintf(w, "  %-18s %d rps, burst %d\n", bannerBold("Rate Limit:"), rl.RPS, rl.Burst)
	}
	fmt.Fprintln(w)
}

// displayFooter 显示页脚
func displayFooter(w io.Writer) {
	fmt.Fprintln(w, bannerFaint("  "+strings.Repeat("━", bannerWidth)))
	fmt.Fprintln(w)
}
