// Package browser manages the Chrome connection: attaching to a running
// instance over its DevTools socket, or launching one, and producing the
// page every other component observes and drives.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/onnwee/lurk-tender/backend/config"
)

const navigateTimeout = 30 * time.Second

// Session is one connected browser with the single page this process works
// against.
type Session struct {
	Browser *rod.Browser
	Page    *rod.Page

	cleanup func()
}

// Connect attaches to the browser named by cfg. With ChromeWSURL set it
// attaches to an already-running Chrome, preferring a tab that is already on
// the target site so the user's logged-in session is reused; otherwise it
// launches a fresh instance.
func Connect(ctx context.Context, cfg config.Config) (*Session, error) {
	controlURL := cfg.ChromeWSURL
	var cleanup func()
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless)
		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
		cleanup = l.Cleanup
		slog.Info("launched chrome", "headless", cfg.Headless)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := targetPage(ctx, b, cfg.TargetURL)
	if err != nil {
		b.Close()
		if cleanup != nil {
			cleanup()
		}
		return nil, err
	}
	return &Session{Browser: b, Page: page, cleanup: cleanup}, nil
}

// targetPage reuses an open tab already on the target site, or opens a new
// stealth page and navigates it there.
func targetPage(ctx context.Context, b *rod.Browser, targetURL string) (*rod.Page, error) {
	pages, err := b.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	host := hostOf(targetURL)
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if host != "" && strings.Contains(info.URL, host) {
			slog.Info("reusing open tab", "url", info.URL)
			return p, nil
		}
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(targetURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("navigate %s: %w", targetURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		slog.Warn("page load wait timed out", "url", targetURL, "error", err)
	}
	slog.Info("opened page", "url", targetURL)
	return page, nil
}

// hostOf pulls the host out of a URL without caring whether the rest parses.
func hostOf(rawURL string) string {
	s := rawURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return s
}

// Close tears the connection down and, when this process launched the
// browser, cleans up its temp profile.
func (s *Session) Close() {
	if s.Browser != nil {
		if err := s.Browser.Close(); err != nil {
			slog.Debug("browser close", "error", err)
		}
	}
	if s.cleanup != nil {
		s.cleanup()
	}
}
