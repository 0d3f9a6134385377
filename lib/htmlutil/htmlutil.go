package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

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

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// CleanText strips non-printable runes and collapses runs of whitespace,
// page titles on the portal carry stray control characters.
func CleanText(s string) string {
	builder := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			builder.WriteRune(c)
		}
	}
	out := strings.Trim(builder.String(), " \t\n")
	return innerWhitespace.ReplaceAllString(out, " ")
}
