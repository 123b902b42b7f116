// Package fingerprint captures the static environment attributes sent with
// every payload. Collection happens once at startup; the result is immutable
// for the life of the session.
package fingerprint

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/stealthsense/behaviortrace-agent/internal/models"
)

// Probe exposes the host introspection surface. Attributes a host cannot
// answer degrade to zero values; probes never fail.
type Probe interface {
	UserAgent() string
	ScreenSize() (width, height int)
	Timezone() string
	Language() string
	Platform() string
	CookiesEnabled() bool
	DoNotTrack() bool
	Online() bool
	TouchSupport() bool
}

// Collect reads every attribute from the probe. A nil probe falls back to the
// system probe.
func Collect(p Probe) models.DeviceFingerprint {
	if p == nil {
		p = SystemProbe{}
	}
	w, h := p.ScreenSize()
	return models.DeviceFingerprint{
		UserAgent:      p.UserAgent(),
		ScreenWidth:    w,
		ScreenHeight:   h,
		Timezone:       p.Timezone(),
		Language:       p.Language(),
		Platform:       p.Platform(),
		CookiesEnabled: p.CookiesEnabled(),
		DoNotTrack:     p.DoNotTrack(),
		Online:         p.Online(),
		TouchSupport:   p.TouchSupport(),
	}
}

// Merge overlays host-supplied attributes onto a collected fingerprint,
// field by field; zero values in the overlay leave the base untouched.
func Merge(base, overlay models.DeviceFingerprint) models.DeviceFingerprint {
	if overlay.UserAgent != "" {
		base.UserAgent = overlay.UserAgent
	}
	if overlay.ScreenWidth > 0 {
		base.ScreenWidth = overlay.ScreenWidth
	}
	if overlay.ScreenHeight > 0 {
		base.ScreenHeight = overlay.ScreenHeight
	}
	if overlay.Timezone != "" {
		base.Timezone = overlay.Timezone
	}
	if overlay.Language != "" {
		base.Language = overlay.Language
	}
	if overlay.Platform != "" {
		base.Platform = overlay.Platform
	}
	base.CookiesEnabled = base.CookiesEnabled || overlay.CookiesEnabled
	base.DoNotTrack = base.DoNotTrack || overlay.DoNotTrack
	base.Online = base.Online || overlay.Online
	base.TouchSupport = base.TouchSupport || overlay.TouchSupport
	return base
}

// SystemProbe answers from the agent process environment. Attributes a
// headless agent cannot know (screen, cookies, touch) stay at their zero
// values.
type SystemProbe struct{}

func (SystemProbe) UserAgent() string { return "behaviortrace-agent" }

func (SystemProbe) ScreenSize() (int, int) { return 0, 0 }

func (SystemProbe) Timezone() string {
	return time.Now().Location().String()
}

func (SystemProbe) Language() string {
	lang := os.Getenv("LANG")
	if lang == "" {
		return ""
	}
	// "en_US.UTF-8" -> "en_US"
	if i := strings.IndexByte(lang, '.'); i > 0 {
		lang = lang[:i]
	}
	return lang
}

func (SystemProbe) Platform() string { return runtime.GOOS }

func (SystemProbe) CookiesEnabled() bool { return false }

func (SystemProbe) DoNotTrack() bool { return false }

func (SystemProbe) Online() bool { return true }

func (SystemProbe) TouchSupport() bool { return false }
