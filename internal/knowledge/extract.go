package knowledge

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractFactCheck pulls the article text out of a fact-checking page.
// PolitiFact, FactCheck.org and Snopes layouts are recognised; other pages
// fall back to their paragraphs.
func ExtractFactCheck(doc *html.Node, pageURL string) string {
	var b strings.Builder

	if h1 := findElement(doc, "h1", ""); h1 != nil {
		b.WriteString("Title: " + textOf(h1) + "\n\n")
	}

	labelled := func(label, tag, class string) {
		if n := findElement(doc, tag, class); n != nil {
			if label != "" {
				b.WriteString(label + ": ")
			}
			b.WriteString(textOf(n) + "\n\n")
		}
	}

	switch {
	case strings.Contains(pageURL, "politifact.com"):
		labelled("Claim", "div", "m-statement__quote")
		labelled("Rating", "div", "m-statement__meter")
		labelled("Analysis", "article", "m-textblock")
	case strings.Contains(pageURL, "factcheck.org"):
		labelled("", "div", "entry-content")
	case strings.Contains(pageURL, "snopes.com"):
		labelled("Claim", "div", "claim-text")
		labelled("Rating", "div", "rating-wrapper")
		labelled("Analysis", "div", "single-body")
	default:
		for _, p := range findAll(doc, "p") {
			if t := textOf(p); t != "" {
				b.WriteString(t + "\n\n")
			}
		}
	}

	return strings.TrimSpace(b.String())
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// findElement returns the first tag element carrying class (any element when class is empty)
func findElement(n *html.Node, tag, class string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag && (class == "" || hasClass(n, class)) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag, class); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// textOf joins the visible text below n, skipping scripts and styles
func textOf(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}
