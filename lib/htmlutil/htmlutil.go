package htmlutil

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// TextFragments collects the text nodes beneath a node as separate
// strings, trimmed of surrounding whitespace. Empty fragments are
// dropped, so "A<br/>B" yields ["A", "B"].
func TextFragments(node *html.Node) []string {
	var fragments []string
	collectFragments(node, &fragments)
	return fragments
}

func collectFragments(node *html.Node, out *[]string) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		text := strings.TrimSpace(node.Data)
		if text != "" {
			*out = append(*out, text)
		}
		return
	}
	child := node.FirstChild
	for child != nil {
		collectFragments(child, out)
		child = child.NextSibling
	}
}
