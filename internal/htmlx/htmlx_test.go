package htmlx_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/linkd/internal/htmlx"
)

func TestPlaintext(t *testing.T) {
	assert.Equal(t, "Hello world", strings.TrimSpace(
		htmlx.Plaintext("<p>Hello <strong>world</strong></p>")))
	assert.Equal(t, "a & b", strings.TrimSpace(
		htmlx.Plaintext("<p>a &amp; b</p>")))
}

func TestPlaintextExcludingAnchors(t *testing.T) {
	text := htmlx.PlaintextExcludingAnchors(
		`<p>Read the <a href="/guide">brewing guide</a> for details.</p>`)
	assert.NotContains(t, text, "brewing guide")
	assert.Contains(t, text, "for details")
}

func TestLocate(t *testing.T) {
	content := `<p>Intro paragraph about coffee.</p>
<h2>Grinder settings explained</h2>
<p>Far more detail follows here, with plenty of words.</p>`

	loc := htmlx.Locate(content, "grinder settings")
	require.True(t, loc.Found)
	assert.Equal(t, htmlx.SemanticHeading, loc.Semantic)
	assert.Contains(t, strings.ToLower(loc.Window), "grinder settings")

	loc = htmlx.Locate(content, "plenty of words")
	require.True(t, loc.Found)
	assert.Equal(t, htmlx.SemanticNone, loc.Semantic)
	assert.Greater(t, loc.Fraction, 0.5)

	assert.False(t, htmlx.Locate(content, "absent phrase").Found)
}

func TestInternalLinkCount(t *testing.T) {
	content := `<p>
<a href="/local">one</a>
<a href="https://example.com/page">two</a>
<a href="https://blog.example.com/page">three</a>
<a href="https://elsewhere.net/x">external</a>
<a href="#section">fragment</a>
<a href="">empty</a>
</p>`
	assert.Equal(t, 3, htmlx.InternalLinkCount(content, "example.com"))
	assert.Equal(t, 1, htmlx.InternalLinkCount(content, ""))
}

func TestAnchorTexts(t *testing.T) {
	used := htmlx.AnchorTexts(`<p><a href="/a">Brewing Guide</a> and <a href="/b">more tips</a></p>`)
	assert.Contains(t, used, "brewing guide")
	assert.Contains(t, used, "more tips")
}

func TestInsertLinksWrapsFirstOccurrence(t *testing.T) {
	content := `<p>Learn about burr grinders here.</p><p>Also burr grinders again.</p>`

	out, inserted := htmlx.InsertLinks(content, []htmlx.Insertion{
		{Anchor: "burr grinders", Href: "/grinders"},
	})

	require.Equal(t, []string{"burr grinders"}, inserted)
	assert.Equal(t, 1, strings.Count(out, "<a "))
	assert.Contains(t, out, `href="/grinders"`)
	assert.Contains(t, out, `itemprop="relatedLink"`)
	// Only the first paragraph gains the link.
	assert.Less(t, strings.Index(out, "<a "), strings.Index(out, "Also"))
}

func TestInsertLinksSkipsLinkedParagraphs(t *testing.T) {
	content := `<p>Already has <a href="/x">a link</a> near burr grinders.</p>
<p>Clean paragraph mentioning burr grinders too.</p>`

	out, inserted := htmlx.InsertLinks(content, []htmlx.Insertion{
		{Anchor: "burr grinders", Href: "/grinders"},
	})

	require.Len(t, inserted, 1)
	// The new link landed in the second paragraph.
	secondPara := out[strings.Index(out, "Clean"):]
	assert.Contains(t, secondPara, `href="/grinders"`)
	// First paragraph still has exactly its original link.
	firstPara := out[:strings.Index(out, "Clean")]
	assert.Equal(t, 1, strings.Count(firstPara, "<a "))
}

func TestInsertLinksNeverNests(t *testing.T) {
	content := `<p><a href="/x">burr grinders</a> are covered elsewhere.</p>`

	out, inserted := htmlx.InsertLinks(content, []htmlx.Insertion{
		{Anchor: "burr grinders", Href: "/grinders"},
	})

	assert.Empty(t, inserted)
	assert.NotContains(t, out, "/grinders")
}

func TestInsertLinksCaseInsensitive(t *testing.T) {
	content := `<p>All about Burr Grinders today.</p>`

	out, inserted := htmlx.InsertLinks(content, []htmlx.Insertion{
		{Anchor: "burr grinders", Href: "/grinders"},
	})

	require.Len(t, inserted, 1)
	// Original casing is preserved inside the link.
	assert.Contains(t, out, ">Burr Grinders</a>")
}

func TestInsertLinksMultiple(t *testing.T) {
	content := `<p>First topic is pour-over brewing.</p><p>Second topic is cold brew.</p>`

	out, inserted := htmlx.InsertLinks(content, []htmlx.Insertion{
		{Anchor: "pour-over brewing", Href: "/pour-over"},
		{Anchor: "cold brew", Href: "/cold-brew"},
	})

	assert.Len(t, inserted, 2)
	assert.Equal(t, 2, strings.Count(out, "itemprop"))
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "a b c", htmlx.CollapseSpace("  a\n\tb   c  "))
}

func TestIndexFold(t *testing.T) {
	assert.Equal(t, 0, htmlx.IndexFold("Hello World", "hello"))
	assert.Equal(t, 6, htmlx.IndexFold("Hello World", "WORLD"))
	assert.Equal(t, -1, htmlx.IndexFold("Hello", "absent"))
	assert.Equal(t, -1, htmlx.IndexFold("", ""))
}
