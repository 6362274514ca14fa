package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ytget/kwikdl/internal/logger"
	"github.com/ytget/kwikdl/internal/sanitize"
	"github.com/ytget/kwikdl/kwik/cipher"
	"github.com/ytget/kwikdl/types"
)

const (
	// PatternDirectLink names the literal link matcher in Extraction.Pattern.
	PatternDirectLink = "direct-link"

	linkPattern    = `"(https?://kwik\.[^/\s"]+/[^/\s"]+/[^"\s]+)"`
	rewritePattern = `^(https?://kwik\.[^/]+/)d/`
	packedMarker   = "eval("
)

// Call shapes, tried in order. Groups: cipher text, alphabet, offset, radix.
const (
	strictDoublePattern = `\(\s*"([^",]*)"\s*,\s*\d+\s*,\s*"([^",]*)"\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*\d+[a-zA-Z]?\s*\)`
	strictSinglePattern = `\(\s*'([^',]*)'\s*,\s*\d+\s*,\s*'([^',]*)'\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*\d+[a-zA-Z]?\s*\)`
	mixedQuotePattern   = `\(\s*["']([^"',]*)["']\s*,\s*\d+\s*,\s*["']([^"',]*)["']\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*\d+[a-zA-Z]?\s*\)`
	relaxedPattern      = `\(\s*["']([^"']+)["']\s*,\s*-?\d+\s*,\s*["']([^"']+)["']\s*,\s*(-?\d+)\s*,\s*(\d+)\s*(?:,\s*[\w.$]+\s*)?\)`
)

var (
	linkRegex    = regexp.MustCompile(linkPattern)
	rewriteRegex = regexp.MustCompile(rewritePattern)
)

// Matcher finds obfuscation parameters in normalized page text. Match returns
// the parameters and the matched call text.
type Matcher struct {
	Name  string
	Match func(text string) (types.ObfuscationParameters, string, bool)
}

// CallMatcher builds a Matcher from a pattern whose four groups are cipher
// text, alphabet, offset and radix. Matches whose numbers do not parse or whose
// parameters cannot be decoded are skipped.
func CallMatcher(name, pattern string) Matcher {
	re := regexp.MustCompile(pattern)
	return Matcher{
		Name: name,
		Match: func(text string) (types.ObfuscationParameters, string, bool) {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				offset, err := strconv.Atoi(m[3])
				if err != nil {
					continue
				}
				radix, err := strconv.Atoi(m[4])
				if err != nil {
					continue
				}
				p := types.ObfuscationParameters{
					CipherText: m[1],
					Alphabet:   m[2],
					Offset:     offset,
					Radix:      radix,
				}
				if cipher.Validate(p) != nil {
					continue
				}
				return p, m[0], true
			}
			return types.ObfuscationParameters{}, "", false
		},
	}
}

// DefaultMatchers returns the call shapes from strictest to most relaxed.
func DefaultMatchers() []Matcher {
	return []Matcher{
		CallMatcher("strict-double", strictDoublePattern),
		CallMatcher("strict-single", strictSinglePattern),
		CallMatcher("mixed-quote", mixedQuotePattern),
		CallMatcher("relaxed", relaxedPattern),
	}
}

// Extractor locates links and obfuscation parameters in page text.
type Extractor struct {
	matchers []Matcher
	log      *logger.ComponentLogger
}

// New returns an Extractor using DefaultMatchers.
func New() *Extractor {
	return &Extractor{
		matchers: DefaultMatchers(),
		log:      logger.WithComponent(logger.ComponentExtract),
	}
}

// WithMatchers replaces the call matchers. Order is priority.
func (x *Extractor) WithMatchers(m ...Matcher) *Extractor {
	x.matchers = m
	return x
}

// WithLogger sets the logger used for match diagnostics.
func (x *Extractor) WithLogger(l *logger.Logger) *Extractor {
	if l != nil {
		x.log = l.WithComponent(logger.ComponentExtract)
	}
	return x
}

// Matchers returns the configured call matchers in priority order.
func (x *Extractor) Matchers() []Matcher {
	return x.matchers
}

// Extract returns the first literal link on the page, or else the first
// obfuscation call found by the matchers, or NotFound.
func (x *Extractor) Extract(page string) types.Extraction {
	text := sanitize.PageText(page)

	if link, ok := x.FindLink(text); ok {
		x.log.Debug("literal link found", map[string]interface{}{"link": link})
		return types.Extraction{Kind: types.DirectLink, Link: RewritePath(link), Pattern: PatternDirectLink}
	}

	if ex := x.findCall(page, text); ex.Found() {
		return ex
	}

	x.log.Debug("nothing matched", map[string]interface{}{"length": len(text)})
	return types.Extraction{Kind: types.NotFound}
}

// FindCall runs only the call matchers, ignoring literal links. Hosting pages
// link to themselves, so their obfuscated form must be looked up this way.
func (x *Extractor) FindCall(page string) types.Extraction {
	return x.findCall(page, sanitize.PageText(page))
}

func (x *Extractor) findCall(page, text string) types.Extraction {
	for _, m := range x.matchers {
		params, call, ok := m.Match(text)
		if !ok {
			continue
		}
		x.log.Debug("obfuscation call found", map[string]interface{}{
			"pattern": m.Name,
			"radix":   params.Radix,
			"offset":  params.Offset,
		})
		return types.Extraction{
			Kind:    types.ObfuscatedLink,
			Params:  &params,
			Script:  enclosingScript(page, text, call),
			Pattern: m.Name,
		}
	}
	return types.Extraction{Kind: types.NotFound}
}

// FindLink returns the first quoted target-site link with two path segments.
func (x *Extractor) FindLink(text string) (string, bool) {
	m := linkRegex.FindStringSubmatch(sanitize.StripLineBreaks(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// RewritePath turns a target-site link whose path starts with d/ into the
// fetchable f/ form. Other links are returned unchanged.
func RewritePath(link string) string {
	return rewriteRegex.ReplaceAllString(link, "${1}f/")
}

// enclosingScript returns the inline script holding call. It prefers the raw
// <script> element and falls back to the eval(...) expression around call in
// the normalized text.
func enclosingScript(page, text, call string) string {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(page)); err == nil {
		var found string
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			body := s.Text()
			if strings.Contains(sanitize.StripLineBreaks(body), call) {
				found = body
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	end := strings.Index(text, call)
	if end < 0 {
		return ""
	}
	start := strings.LastIndex(text[:end], packedMarker)
	if start < 0 {
		return ""
	}
	end += len(call)
	if end < len(text) && text[end] == ')' {
		end++
	}
	return text[start:end]
}
