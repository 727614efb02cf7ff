package htmlx

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Insertion describes one link to weave into content.
type Insertion struct {
	Anchor string
	Href   string
}

// InsertLinks weaves links into an HTML fragment. For each insertion it
// wraps the first occurrence of the anchor that is not already inside a
// link, as `<a href itemprop="relatedLink">`. A paragraph that already
// contains a link never gains another, so dense intros do not turn into
// link farms. Returns the rewritten fragment and the anchors that were
// actually inserted, in input order.
func InsertLinks(content string, insertions []Insertion) (string, []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content, nil
	}

	body := doc.Find("body")
	if len(body.Nodes) == 0 {
		return content, nil
	}
	root := body.Nodes[0]

	var inserted []string
	for _, ins := range insertions {
		anchor := strings.TrimSpace(ins.Anchor)
		if anchor == "" || ins.Href == "" {
			continue
		}
		if insertOne(root, anchor, ins.Href) {
			inserted = append(inserted, anchor)
		}
	}

	out, err := body.Html()
	if err != nil {
		return content, nil
	}
	return out, inserted
}

// insertOne wraps the first eligible occurrence of anchor under root.
func insertOne(root *html.Node, anchor, href string) bool {
	node, offset := findTextNode(root, anchor)
	if node == nil {
		return false
	}

	before := node.Data[:offset]
	match := node.Data[offset : offset+len(anchor)]
	after := node.Data[offset+len(anchor):]

	link := &html.Node{
		Type: html.ElementNode,
		Data: "a",
		Attr: []html.Attribute{
			{Key: "href", Val: href},
			{Key: "itemprop", Val: "relatedLink"},
		},
	}
	link.AppendChild(&html.Node{Type: html.TextNode, Data: match})

	parent := node.Parent
	node.Data = before
	if after != "" {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: after}, node.NextSibling)
	}
	parent.InsertBefore(link, node.NextSibling)
	return true
}

// findTextNode walks the tree in document order for the first text node
// containing anchor (case-insensitive) that is not inside a link and
// whose paragraph holds no link yet. Returns the node and match offset.
func findTextNode(n *html.Node, anchor string) (*html.Node, int) {
	if n.Type == html.ElementNode && n.Data == "a" {
		return nil, 0
	}
	if n.Type == html.TextNode {
		if idx := IndexFold(n.Data, anchor); idx >= 0 && !paragraphHasLink(n) {
			return n, idx
		}
		return nil, 0
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if node, idx := findTextNode(c, anchor); node != nil {
			return node, idx
		}
	}
	return nil, 0
}

// paragraphHasLink reports whether the paragraph-level container of a
// text node already holds an <a>.
func paragraphHasLink(n *html.Node) bool {
	block := n.Parent
	for block != nil && !isParagraphLevel(block) {
		block = block.Parent
	}
	if block == nil {
		return false
	}
	return hasLinkDescendant(block)
}

func isParagraphLevel(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "p", "li", "blockquote", "h1", "h2", "h3", "h4", "h5", "h6", "td", "body":
		return true
	}
	return false
}

func hasLinkDescendant(n *html.Node) bool {
	if n.Type == html.ElementNode && n.Data == "a" {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasLinkDescendant(c) {
			return true
		}
	}
	return false
}
