package bridge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"poly/pkg/sovereignty"
)

func registerDesktopOps() {
	register("dialog_open", needs(sovereignty.Dialogs), func(s *Server, _ context.Context, a Args) (any, error) {
		if path, ok := s.desktop.OpenFile(a.String("title", 0, "Open"), a.Strings("filters", 1)); ok {
			return path, nil
		}
		return nil, nil
	})
	register("dialog_open_multiple", needs(sovereignty.Dialogs), func(s *Server, _ context.Context, a Args) (any, error) {
		return s.desktop.OpenFiles(a.String("title", 0, "Open"), a.Strings("filters", 1)), nil
	})
	register("dialog_save", needs(sovereignty.Dialogs), func(s *Server, _ context.Context, a Args) (any, error) {
		if path, ok := s.desktop.SaveFile(a.String("title", 0, "Save"), a.String("defaultName", 1, "")); ok {
			return path, nil
		}
		return nil, nil
	})
	register("dialog_folder", needs(sovereignty.Dialogs), func(s *Server, _ context.Context, a Args) (any, error) {
		if path, ok := s.desktop.PickFolder(a.String("title", 0, "Select folder")); ok {
			return path, nil
		}
		return nil, nil
	})
	register("dialog_message", needs(sovereignty.Dialogs), func(s *Server, _ context.Context, a Args) (any, error) {
		return s.desktop.Message(a.String("title", 0, "Message"), a.String("message", 1, ""), a.String("level", 2, "info")), nil
	})
	register("dialog_confirm", needs(sovereignty.Dialogs), func(s *Server, _ context.Context, a Args) (any, error) {
		return s.desktop.Confirm(a.String("title", 0, "Confirm"), a.String("message", 1, "")), nil
	})

	register("clipboard_read", needs(sovereignty.ClipboardRead), func(s *Server, _ context.Context, _ Args) (any, error) {
		text, err := s.desktop.ReadClipboard()
		if err != nil {
			return nil, fmt.Errorf("Clipboard error: %w", err)
		}
		return text, nil
	})
	register("clipboard_write", needs(sovereignty.ClipboardWrite), func(s *Server, _ context.Context, a Args) (any, error) {
		if err := s.desktop.WriteClipboard(a.String("text", 0, "")); err != nil {
			return nil, fmt.Errorf("Clipboard error: %w", err)
		}
		return true, nil
	})

	register("notify", needs(sovereignty.Notifications), func(s *Server, _ context.Context, a Args) (any, error) {
		timeout := time.Duration(a.Int("timeout", 2, s.manifest.NotificationTimeout)) * time.Second
		if err := s.desktop.Notify(a.String("title", 0, s.manifest.Package.Name), a.String("body", 1, ""), timeout); err != nil {
			return nil, fmt.Errorf("Notification error: %w", err)
		}
		return true, nil
	})

	register("tray_set_tooltip", needs(sovereignty.SystemTray), func(s *Server, _ context.Context, a Args) (any, error) {
		s.tray.Store(a.String("tooltip", 0, ""))
		return true, nil
	})

	register("deeplink_register", needs(sovereignty.DeepLinks), func(s *Server, _ context.Context, a Args) (any, error) {
		scheme, err := a.Require("scheme", 0)
		if err != nil {
			return nil, err
		}
		s.deeplinks.Set(scheme, true)
		schemes := s.deeplinks.Keys()
		sort.Strings(schemes)
		return schemes, nil
	})

	register("app_exit", needs(sovereignty.AppExit), func(s *Server, _ context.Context, a Args) (any, error) {
		code := int(a.Int("code", 0, 0))
		s.log.Info().Int("code", code).Msg("exit requested")
		go s.exit(code)
		return true, nil
	})
	register("app_relaunch", needs(sovereignty.AppRelaunch), func(s *Server, _ context.Context, _ Args) (any, error) {
		if err := s.relaunch(); err != nil {
			return nil, fmt.Errorf("Relaunch failed: %w", err)
		}
		go s.exit(0)
		return true, nil
	})

	register("os_info", nil, func(s *Server, ctx context.Context, _ Args) (any, error) {
		return osInfo(ctx), nil
	})
}

// TrayTooltip is the tooltip last set by the manifest or tray_set_tooltip.
func (s *Server) TrayTooltip() string {
	v, _ := s.tray.Load().(string)
	return v
}

// DeepLinks lists the schemes registered through deeplink_register.
func (s *Server) DeepLinks() []string {
	schemes := s.deeplinks.Keys()
	sort.Strings(schemes)
	return schemes
}

func relaunchSelf() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

type systemInfo struct {
	OS              string  `json:"os"`
	Arch            string  `json:"arch"`
	Hostname        string  `json:"hostname"`
	Platform        string  `json:"platform,omitempty"`
	PlatformVersion string  `json:"platform_version,omitempty"`
	KernelVersion   string  `json:"kernel_version,omitempty"`
	Uptime          uint64  `json:"uptime"`
	CPUs            int     `json:"cpus"`
	MemoryTotal     uint64  `json:"memory_total"`
	MemoryAvailable uint64  `json:"memory_available"`
	MemoryUsed      float64 `json:"memory_used_percent"`
}

// osInfo fills what gopsutil can read and falls back to the runtime for
// the rest.
func osInfo(ctx context.Context) systemInfo {
	info := systemInfo{OS: runtime.GOOS, Arch: runtime.GOARCH, CPUs: runtime.NumCPU()}
	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
		info.PlatformVersion = h.PlatformVersion
		info.KernelVersion = h.KernelVersion
		info.Uptime = h.Uptime
	} else if name, err := os.Hostname(); err == nil {
		info.Hostname = name
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		info.CPUs = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryTotal = vm.Total
		info.MemoryAvailable = vm.Available
		info.MemoryUsed = vm.UsedPercent
	}
	return info
}
