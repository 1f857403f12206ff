// Package page inspects document markup for the markers used to classify
// content: media elements and article containers.
package page

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/svchittilla/gamemycourse/internal/engagement"
)

var articleClasses = map[string]bool{
	"content": true,
	"post":    true,
}

// Inspect walks the document and reports which markers it contains.
func Inspect(r io.Reader) (engagement.PageProfile, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return engagement.PageProfile{}, fmt.Errorf("failed to parse page: %w", err)
	}

	var profile engagement.PageProfile
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Video:
				profile.HasMedia = true
			case atom.Article, atom.Main:
				profile.HasArticle = true
			default:
				if hasArticleClass(n) {
					profile.HasArticle = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if profile.HasMedia && profile.HasArticle {
				return
			}
			walk(c)
		}
	}
	walk(doc)
	return profile, nil
}

// InspectString is Inspect over an in-memory document.
func InspectString(markup string) (engagement.PageProfile, error) {
	return Inspect(strings.NewReader(markup))
}

func hasArticleClass(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, class := range strings.Fields(attr.Val) {
			if articleClasses[class] {
				return true
			}
		}
	}
	return false
}
