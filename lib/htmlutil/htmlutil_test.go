package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func parseFragment(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestGetText(t *testing.T) {
	doc := parseFragment(t, "<span>hello <b>world</b></span>")
	require.Equal(t, "hello world", GetText(doc))
}

func TestTextFragments(t *testing.T) {
	cases := []struct {
		src      string
		expected []string
	}{
		{
			src:      "<span>Acme Corp<br/>PRJ-9</span>",
			expected: []string{"Acme Corp", "PRJ-9"},
		},
		{
			src:      "<span>\n\tAcme Corp\n\t<br/>\n\tPRJ-9\n</span>",
			expected: []string{"Acme Corp", "PRJ-9"},
		},
		{
			src:      "<span></span>",
			expected: nil,
		},
	}

	for _, test := range cases {
		doc := parseFragment(t, test.src)
		require.Equal(t, test.expected, TextFragments(doc))
	}
}
