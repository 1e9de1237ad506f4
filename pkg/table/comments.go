package table

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Uncomment replaces comment nodes that contain table markup with the parsed
// markup. The site ships most secondary tables commented out and reveals them
// with script. It returns the number of comments expanded.
func Uncomment(root *html.Node) int {
	var comments []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.CommentNode {
				if strings.Contains(c.Data, "<table") {
					comments = append(comments, c)
				}
				continue
			}
			walk(c)
		}
	}
	walk(root)

	expanded := 0
	for _, c := range comments {
		parent := c.Parent
		if parent == nil {
			continue
		}
		context := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
		nodes, err := html.ParseFragment(strings.NewReader(c.Data), context)
		if err != nil {
			continue
		}
		for _, n := range nodes {
			parent.InsertBefore(n, c)
		}
		parent.RemoveChild(c)
		expanded++
	}
	return expanded
}
