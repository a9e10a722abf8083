package badge

import (
	"fmt"
	"regexp"
	"strings"
)

// Site describes one badge-hosting site family: how its URLs spell the
// "branch" segment. The rewriter matches the host marker anywhere in a URL,
// skips ahead to the keyword and separator, and replaces only the branch
// token that follows.
type Site struct {
	// Host is the substring identifying the hosting site, e.g. "coveralls.io".
	Host string
	// Key is the site's keyword for a branch, e.g. "branch" or "tree".
	Key string
	// Sep separates the keyword from the branch token, e.g. "=" or "/".
	Sep string
}

// DefaultSites covers the badge URL shapes found in typical READMEs:
// query-parameter sites (?branch=...) and path-segment sites (/tree/...).
func DefaultSites() []Site {
	return []Site{
		{Host: "coveralls.io", Key: "branch", Sep: "="},
		{Host: "travis-ci.org", Key: "branch", Sep: "="},
		{Host: "travis-ci.com", Key: "branch", Sep: "="},
		{Host: "shields.io", Key: "branch", Sep: "="},
		{Host: "github.com", Key: "tree", Sep: "/"},
	}
}

// A branch token runs until whitespace, a quote, or a URL delimiter that
// would start a different part of the URL.
const tokenPattern = `[^\s"'&#?)]+`

// Rewriter repoints badge URLs at a target branch. It is a pure text
// transform; construct once and reuse.
type Rewriter struct {
	patterns []*regexp.Regexp
}

// NewRewriter compiles one pattern per site family.
func NewRewriter(sites []Site) *Rewriter {
	patterns := make([]*regexp.Regexp, 0, len(sites))
	for _, s := range sites {
		// (host ... key sep) token  -- group 1 is kept, the token is replaced.
		expr := "(" + regexp.QuoteMeta(s.Host) + `[^\s"')]*?` +
			regexp.QuoteMeta(s.Key+s.Sep) + ")" + tokenPattern
		patterns = append(patterns, regexp.MustCompile(expr))
	}
	return &Rewriter{patterns: patterns}
}

// Rewrite returns content with every matched badge reference pointing at
// target. Content without badge references passes through unchanged, and
// rewriting is idempotent.
func (r *Rewriter) Rewrite(content, target string) string {
	for _, re := range r.patterns {
		content = re.ReplaceAllStringFunc(content, func(m string) string {
			loc := re.FindStringSubmatchIndex(m)
			return m[loc[2]:loc[3]] + target
		})
	}
	return content
}

// Matches reports whether content contains at least one badge reference,
// regardless of which branch it points at.
func (r *Rewriter) Matches(content string) bool {
	for _, re := range r.patterns {
		if re.MatchString(content) {
			return true
		}
	}
	return false
}

// Validate checks a site family definition for the fields the rewriter
// needs. Host must look like a host marker, not a pattern.
func (s Site) Validate() error {
	switch {
	case s.Host == "":
		return fmt.Errorf("badge site is missing required field host")
	case s.Key == "":
		return fmt.Errorf("badge site %s is missing required field key", s.Host)
	case s.Sep == "":
		return fmt.Errorf("badge site %s is missing required field sep", s.Host)
	case strings.ContainsAny(s.Host, " \t"):
		return fmt.Errorf("badge site has invalid host: %q", s.Host)
	case strings.ContainsAny(s.Key, " \t/=?&"):
		return fmt.Errorf("badge site %s has invalid key: %q", s.Host, s.Key)
	}
	return nil
}
