package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	tokenField     = "_token"
	tokenPattern   = `name="_token"[^"]*"([^"\s]*)"`
	redirectMarker = `(?i)(?:location|href)["':\s=]*["']?(https?://[^"'\s<>]+)`
)

var (
	tokenRegex    = regexp.MustCompile(tokenPattern)
	redirectRegex = regexp.MustCompile(redirectMarker)
	formHostRegex = regexp.MustCompile(`^https?://kwik\.[^/]+/`)
)

// Form is the download form of a hosting page.
type Form struct {
	Action string
	Token  string
}

// FindForm locates the submission URL and the _token value in decoded HTML.
// The parsed document is tried first and regular expressions second. ok is
// false unless both values were found.
func (x *Extractor) FindForm(html string) (Form, bool) {
	f := formFromDocument(html)
	if f.Action == "" {
		if link, ok := x.FindLink(html); ok {
			f.Action = link
		}
	}
	if f.Token == "" {
		if m := tokenRegex.FindStringSubmatch(html); m != nil {
			f.Token = m[1]
		}
	}
	x.log.Debug("form lookup", map[string]interface{}{
		"action":    f.Action,
		"has_token": f.Token != "",
	})
	return f, f.Action != "" && f.Token != ""
}

func formFromDocument(html string) Form {
	var f Form
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return f
	}
	doc.Find("form").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		action, _ := s.Attr("action")
		action = strings.TrimSpace(action)
		if !formHostRegex.MatchString(action) {
			return true
		}
		token, _ := s.Find(`input[name="` + tokenField + `"]`).First().Attr("value")
		f = Form{Action: action, Token: strings.TrimSpace(token)}
		return token == ""
	})
	if f.Token == "" {
		if token, ok := doc.Find(`input[name="` + tokenField + `"]`).First().Attr("value"); ok {
			f.Token = strings.TrimSpace(token)
		}
	}
	return f
}

// FindRedirect scans a response body for an absolute URL following a
// location or href marker.
func (x *Extractor) FindRedirect(body string) (string, bool) {
	m := redirectRegex.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}
