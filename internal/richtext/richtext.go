// Package richtext sanitizes user supplied editor markup. Every path that
// stores or renders experience_description / additional_tips goes through
// Sanitize.
package richtext

import (
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// editorClass matches the formatting classes the rich text editor emits
// (ql-align-center, ql-indent-2, ql-syntax, ...).
var editorClass = regexp.MustCompile(`^(ql-[a-z0-9-]+)( ql-[a-z0-9-]+)*$`)

func markupPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("class").Matching(editorClass).Globally()
		p.AllowAttrs("spellcheck").Matching(regexp.MustCompile(`^(true|false)$`)).OnElements("pre")
		p.RequireNoFollowOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		policy = p
	})
	return policy
}

// Sanitize strips executable content (script/style elements, event handler
// attributes, javascript: URLs) and keeps structural and inline markup.
func Sanitize(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	return strings.TrimSpace(markupPolicy().Sanitize(html))
}

// SanitizePtr is Sanitize for nullable columns; blank output becomes nil.
func SanitizePtr(html *string) *string {
	if html == nil {
		return nil
	}
	out := Sanitize(*html)
	if out == "" {
		return nil
	}
	return &out
}

// IsBlank reports whether markup carries no visible text, e.g. an editor's
// empty "<p><br></p>".
func IsBlank(html string) bool {
	text := bluemonday.StrictPolicy().Sanitize(html)
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	return strings.TrimSpace(text) == ""
}
