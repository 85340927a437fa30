package assistant

import (
	"regexp"
	"strings"

	"chatrelay/pkg/config"
)

// Retrieval citations look like 【12:3†links.txt】 and leak backend internals
// into replies.
var (
	anyMarker      = regexp.MustCompile(`【\d+:\d+†[^】]+】`)
	namedMarker    = regexp.MustCompile(`【\d+:\d+†([^】]+)】`)
	multiSpace     = regexp.MustCompile(` +`)
	multiNewline   = regexp.MustCompile(`\n\s*\n\s*\n`)
	spaceAroundEOL = regexp.MustCompile(` +\n|\n +`)
)

// Sanitizer strips streaming/retrieval artifacts from assistant replies.
//
// The marker patterns are a property of the remote service's response format,
// so the rule set is configured rather than fixed: a per-file strip list
// ("*" strips everything) and an optional marker-to-filename rewrite.
type Sanitizer struct {
	stripAll       bool
	stripFiles     []*regexp.Regexp
	rewriteMarkers bool
}

// NewSanitizer builds a sanitizer from configuration.
func NewSanitizer(cfg config.SanitizeConfig) *Sanitizer {
	s := &Sanitizer{rewriteMarkers: cfg.RemoveChunkMarkers}

	for _, file := range cfg.RemoveChunksForFiles {
		file = strings.TrimSpace(file)
		if file == "*" {
			s.stripAll = true
			continue
		}
		if file == "" {
			continue
		}
		s.stripFiles = append(s.stripFiles, regexp.MustCompile(`【\d+:\d+†`+regexp.QuoteMeta(file)+`】`))
	}

	return s
}

// Clean removes chunk markers from one reply and normalizes the whitespace
// the removals leave behind.
func (s *Sanitizer) Clean(text string) string {
	cleaned := text

	if s.stripAll {
		return strings.TrimSpace(anyMarker.ReplaceAllString(cleaned, ""))
	}

	for _, pattern := range s.stripFiles {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}

	if s.rewriteMarkers {
		cleaned = namedMarker.ReplaceAllString(cleaned, " ($1) ")
	}

	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	cleaned = multiNewline.ReplaceAllString(cleaned, "\n\n")
	cleaned = spaceAroundEOL.ReplaceAllString(cleaned, "\n")

	return strings.TrimSpace(cleaned)
}
