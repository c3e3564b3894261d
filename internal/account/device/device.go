// Package device turns user-agent strings into short display names for the
// last-login field of a profile.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// Service describes login devices. A disabled service records nothing.
type Service struct {
	enabled bool
}

// NewService returns a Service. Regulated deployments pass enabled=false so
// no user-agent derived data is stored.
func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// Describe returns the display name for userAgent, or "" when disabled.
func (s *Service) Describe(userAgent string) string {
	if s == nil || !s.enabled {
		return ""
	}
	return ParseUserAgent(userAgent)
}

// ParseUserAgent formats userAgent as "Browser on OS".
func ParseUserAgent(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	browser = strings.TrimSpace(browser)
	if ua.Bot() {
		browser = "Bot"
	}
	if browser == "" {
		browser = "Unknown Browser"
	}

	os := strings.TrimSpace(ua.OS())
	if platform := strings.TrimSpace(ua.Platform()); platform != "" && !strings.Contains(os, platform) {
		os = strings.TrimSpace(platform + " " + os)
	}
	if os == "" {
		os = "Unknown OS"
	}

	return browser + " on " + os
}
