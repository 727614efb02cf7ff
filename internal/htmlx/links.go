package htmlx

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is one hyperlink found in content.
type Link struct {
	Href   string
	Anchor string
}

// Links returns every <a> element with an href, in document order.
func Links(content string) []Link {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var links []Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		links = append(links, Link{
			Href:   strings.TrimSpace(href),
			Anchor: CollapseSpace(s.Text()),
		})
	})
	return links
}

// InternalLinkCount counts links that stay on the site: relative hrefs and
// absolute hrefs on the given domain. Fragment-only and empty hrefs do not
// count.
func InternalLinkCount(content, domain string) int {
	count := 0
	for _, l := range Links(content) {
		if IsInternalHref(l.Href, domain) {
			count++
		}
	}
	return count
}

// IsInternalHref reports whether href points within the site.
func IsInternalHref(href, domain string) bool {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
		return true
	}

	rest, ok := strings.CutPrefix(href, "https://")
	if !ok {
		rest, ok = strings.CutPrefix(href, "http://")
	}
	if !ok {
		rest, ok = strings.CutPrefix(href, "//")
	}
	if !ok || domain == "" {
		return false
	}

	host := rest
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// AnchorTexts returns the lowercased text of every link in content, for
// seeding used-anchor sets.
func AnchorTexts(content string) map[string]struct{} {
	used := make(map[string]struct{})
	for _, l := range Links(content) {
		if l.Anchor == "" {
			continue
		}
		used[strings.ToLower(l.Anchor)] = struct{}{}
	}
	return used
}
