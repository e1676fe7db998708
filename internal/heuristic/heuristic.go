// oreon/sentinel · watchthelight <wtl>

// Package heuristic implements the local pre-filter: fast, pure
// pattern checks that gate navigation and downloads before the
// analysis engine is consulted. No I/O, no persistence; interceptors
// own all side effects.
package heuristic

import (
	"regexp"
	"strings"

	"github.com/oreonproject/sentinel/pkg/threat"
)

// NavigationThreshold is the accumulated score at which a navigation
// is considered suspicious.
const NavigationThreshold = 40

// navigationPatterns each contribute +20 to the accumulated score.
// A single pattern matches at most once.
var navigationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.exe\?`),
	regexp.MustCompile(`\.scr\?`),
	regexp.MustCompile(`(?i)phishing`),
	regexp.MustCompile(`(?i)verification`),
	regexp.MustCompile(`(?i)suspend`),
	regexp.MustCompile(`(?i)confirm.*account`),
}

// dangerousExtensions is the download denylist.
var dangerousExtensions = []string{
	".exe", ".dll", ".scr", ".bat", ".cmd", ".vbs", ".js",
}

// internalSchemes are never scored.
var internalSchemes = []string{
	"chrome://", "chrome-extension://", "about:", "sentinel://",
}

// IsInternalURL reports whether url uses a browser-internal scheme
// that is skipped unconditionally.
func IsInternalURL(url string) bool {
	for _, scheme := range internalSchemes {
		if strings.HasPrefix(url, scheme) {
			return true
		}
	}
	return false
}

// ScoreNavigation evaluates a navigation URL. It returns a MEDIUM
// verdict once the accumulated score reaches NavigationThreshold, and
// nil when the URL is internal or scores below it.
func ScoreNavigation(url string) *threat.Score {
	if IsInternalURL(url) {
		return nil
	}

	score := 0
	for _, pattern := range navigationPatterns {
		if pattern.MatchString(url) {
			score += 20
		}
	}
	if score < NavigationThreshold {
		return nil
	}

	return &threat.Score{
		Level:      threat.LevelMedium,
		Score:      score,
		Confidence: 0.7,
		Indicators: []string{"Suspicious URL pattern detected"},
	}
}

// ScoreDownload evaluates a download filename. A denylisted extension
// yields a HIGH verdict; anything else yields nil.
func ScoreDownload(filename string) *threat.Score {
	lower := strings.ToLower(filename)
	for _, ext := range dangerousExtensions {
		if strings.HasSuffix(lower, ext) {
			return &threat.Score{
				Level:      threat.LevelHigh,
				Score:      75,
				Confidence: 0.8,
				Indicators: []string{
					"Executable file type",
					"Downloaded file - requires scan",
				},
			}
		}
	}
	return nil
}
