package source

import (
	"strings"

	"golang.org/x/net/html"
)

// pageFacts are the structural signals read off a page's markup.
type pageFacts struct {
	Links    int
	Forms    int
	WhatsApp []string
}

// parsePageFacts walks the document and counts textual links and forms,
// and collects WhatsApp deep-links. A parse failure returns zero facts;
// the body text analysis still stands on its own.
func parsePageFacts(src string) pageFacts {
	var facts pageFacts
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return facts
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				href := attrVal(n, "href")
				if href != "" && strings.TrimSpace(nodeText(n)) != "" {
					facts.Links++
				}
				if isWhatsAppLink(href) {
					facts.WhatsApp = append(facts.WhatsApp, href)
				}
			case "form":
				facts.Forms++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return facts
}

func isWhatsAppLink(href string) bool {
	return href != "" &&
		(strings.Contains(href, "wa.me") || strings.Contains(href, "whatsapp"))
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
