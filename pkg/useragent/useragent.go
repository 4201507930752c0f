// Package useragent classifies user-agent strings into the browser, engine,
// OS and device facts attached to browser error events.
package useragent

import (
	"strings"

	ua "github.com/mileusna/useragent"

	"github.com/armorclaw/catcher/pkg/event"
)

// Rendering engine labels.
const (
	EngineWebkit = "Webkit"
	EngineBlink  = "Blink"
	EngineGecko  = "Gecko"
	EngineMSIE   = "MS IE"
	EngineMSEdge = "MS Edge"
)

// Capability tiers. The tier is a coarse signal for dashboards about how
// reliable the in-page catcher is on this browser.
const (
	CapabilityFull     = "full"
	CapabilityDegraded = "degraded"
	CapabilityMinimal  = "minimal"
	CapabilityUnknown  = "browser unknown"
)

// Device classes.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// Detect classifies a user-agent string. It never fails: facts that cannot
// be derived are left empty and the capability tier marks an unrecognized
// browser.
func Detect(userAgent string) event.ClientInfo {
	parsed := ua.Parse(userAgent)
	engine := detectEngine(userAgent)

	return event.ClientInfo{
		Browser: event.Browser{
			Name:       parsed.Name,
			Version:    parsed.Version,
			Engine:     engine,
			Capability: capability(parsed.Name, engine),
		},
		Device: event.Device{
			OS:        osName(parsed),
			OSVersion: parsed.OSVersion,
			Type:      deviceType(parsed),
		},
		UserAgent: userAgent,
	}
}

// MergeViewport attaches viewport dimensions supplied separately in the
// report. Zero values are kept as-is (viewport unknown).
func MergeViewport(info event.ClientInfo, width, height int) event.ClientInfo {
	info.Device.Width = width
	info.Device.Height = height
	return info
}

// detectEngine matches engine signatures directly against the UA string.
// Chromium ships an AppleWebKit token, so Blink has to win before Webkit.
func detectEngine(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Edge/") || strings.Contains(userAgent, "Edg/"):
		return EngineMSEdge
	case strings.Contains(userAgent, "MSIE") || strings.Contains(userAgent, "Trident/"):
		return EngineMSIE
	case strings.Contains(userAgent, "Chrome/") || strings.Contains(userAgent, "Chromium/") || strings.Contains(userAgent, "CriOS/"):
		return EngineBlink
	case strings.Contains(userAgent, "AppleWebKit/"):
		return EngineWebkit
	case strings.Contains(userAgent, "Gecko/"):
		return EngineGecko
	default:
		return ""
	}
}

func capability(name, engine string) string {
	if name == "" {
		return CapabilityUnknown
	}
	switch engine {
	case EngineBlink, EngineWebkit, EngineGecko:
		return CapabilityFull
	case EngineMSEdge:
		return CapabilityDegraded
	case EngineMSIE:
		return CapabilityMinimal
	default:
		return CapabilityMinimal
	}
}

func osName(parsed ua.UserAgent) string {
	// Normalize to the labels events have always been stored with.
	switch parsed.OS {
	case ua.MacOS:
		return "MacOS"
	default:
		return parsed.OS
	}
}

func deviceType(parsed ua.UserAgent) string {
	switch {
	case parsed.Tablet:
		return DeviceTablet
	case parsed.Mobile:
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}
