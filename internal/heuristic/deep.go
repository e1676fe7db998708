// oreon/sentinel · watchthelight <wtl>

package heuristic

import (
	"strings"

	"github.com/oreonproject/sentinel/pkg/threat"
)

// Deep scoring mirrors the richer checks the analysis host performs,
// used as the local fallback when the engine channel is down and for
// files picked up by the downloads watcher.

var highRiskKeywords = []string{"verify", "suspend", "urgent", "confirm", "secure-account"}

var suspiciousTLDs = []string{".tk", ".ml", ".ga", ".cf", ".gq", ".xyz"}

// Whitelist is a trusted-domain list that short-circuits URL scans.
type Whitelist []string

// Contains reports whether the URL's host matches a trusted domain.
func (w Whitelist) Contains(url string) bool {
	domain := hostOf(url)
	for _, safe := range w {
		if strings.Contains(strings.ToLower(domain), safe) {
			return true
		}
	}
	return false
}

func hostOf(url string) string {
	parts := strings.Split(url, "/")
	if len(parts) > 2 {
		return parts[2]
	}
	return url
}

// WhitelistVerdict is the immediate LOW verdict for a trusted domain.
func WhitelistVerdict(url string, ts float64) *threat.Verdict {
	return &threat.Verdict{
		Status:          threat.StatusAnalyzed,
		Details:         "Domain " + hostOf(url) + " is on the trusted whitelist",
		IsolationMethod: threat.IsolationWhitelist,
		ThreatScore: &threat.Score{
			Level:      threat.LevelLow,
			Score:      5,
			Confidence: 0.95,
			Indicators: []string{"Verified legitimate domain", "On whitelist"},
		},
		Timestamp: ts,
	}
}

// ScoreURLDeep applies the host bridge's URL risk factors: high-risk
// keywords, missing HTTPS and throwaway TLDs.
func ScoreURLDeep(url string) threat.Score {
	lower := strings.ToLower(url)
	score := 0
	var indicators []string

	for _, kw := range highRiskKeywords {
		if strings.Contains(lower, kw) {
			score += 30
			indicators = append(indicators, "URL contains high-risk keywords")
			break
		}
	}
	if strings.HasPrefix(url, "http://") {
		score += 15
		indicators = append(indicators, "No HTTPS encryption")
	}
	for _, tld := range suspiciousTLDs {
		if strings.Contains(lower, tld) {
			score += 25
			indicators = append(indicators, "Suspicious top-level domain")
			break
		}
	}
	if len(indicators) == 0 {
		indicators = append(indicators, "No local risk indicators")
	}

	return threat.Score{
		Level:      threat.LevelForScore(score),
		Score:      score,
		Confidence: 0.6,
		Indicators: indicators,
	}
}

// ScoreFile applies the backend's static file checks: extension class,
// double extensions and size extremes. Size < 0 means unknown.
func ScoreFile(path string, size int64) threat.Score {
	lower := strings.ToLower(path)
	score := 0
	confidence := 0.7
	var indicators []string

	switch {
	case hasAnySuffix(lower, ".exe", ".dll", ".scr"):
		score += 20
		indicators = append(indicators, "Executable file type")
	case hasAnySuffix(lower, ".js", ".vbs", ".bat"):
		score += 25
		indicators = append(indicators, "Script file - higher risk")
	}

	base := lower
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if strings.Count(base, ".") > 1 {
		score += 30
		indicators = append(indicators, "Suspicious double extension")
		confidence += 0.1
	}

	if size >= 0 {
		if size < 1024 {
			score += 10
			indicators = append(indicators, "Suspiciously small file size")
		}
		if size > 50_000_000 {
			score += 5
			indicators = append(indicators, "Large file size")
		}
	}

	if score > 100 {
		score = 100
	}
	confidence += float64(len(indicators)) * 0.05
	if confidence > 1.0 {
		confidence = 1.0
	}

	return threat.Score{
		Level:      threat.LevelForScore(score),
		Score:      score,
		Confidence: confidence,
		Indicators: indicators,
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
