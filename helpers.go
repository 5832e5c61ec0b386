package clubsite

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify converts a title to a URL-safe slug. Accents are folded to their
// base letters; other non-ASCII characters act as separators.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// FilterEmpty removes empty/whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	out := []string{}
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func validCategory(c string) bool {
	switch c {
	case CategoryBlog, CategoryNews, CategoryArticle:
		return true
	}
	return false
}

func uploadURL(filename string) string {
	return "/uploads/" + url.PathEscape(filename)
}

// ContentJsonLD returns a Schema.org BlogPosting JSON-LD block for a content
// item, safe to embed in a <script> element.
func ContentJsonLD(cfg SiteConfig, item ContentItem, meta PageMeta) string {
	kind := "BlogPosting"
	if item.Category == CategoryNews {
		kind = "NewsArticle"
	}
	data := map[string]interface{}{
		"@context":      "https://schema.org",
		"@type":         kind,
		"headline":      meta.Title,
		"description":   meta.Description,
		"datePublished": item.PublishedAt,
		"url":           meta.URL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   meta.URL,
		},
	}
	if meta.Image != "" {
		data["image"] = meta.Image
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	// json.Marshal already escapes <, > and &.
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return strings.ReplaceAll(string(b), "'", "\\u0027")
}
