package importer

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/MrSnakeDoc/shelf/internal/icon"
)

// ParseNetscape reads a Netscape bookmark file as exported by browsers.
// Nested folders are flattened: a bookmark belongs to its innermost folder.
// ICON holds either a data URI or an image url; Firefox's ICON_URI is used
// when ICON is absent. Firefox TAGS become tags. A <DD> right after a link is
// its description.
func ParseNetscape(r io.Reader) ([]Entry, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bookmark html: %w", err)
	}

	var (
		entries []Entry
		folders []string
		last    = -1 // index of the entry a <DD> may describe
	)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h3":
				folders = append(folders, strings.TrimSpace(textOf(n)))
			case "a":
				if e, ok := linkEntry(n); ok {
					if len(folders) > 0 {
						e.Category = folders[len(folders)-1]
					}
					entries = append(entries, e)
					last = len(entries) - 1
				}
			case "dd":
				if last >= 0 {
					entries[last].Input.Description = strings.TrimSpace(ownText(n))
					last = -1
				}
			case "dt":
				last = -1
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		// leaving a folder's list closes the folder
		if n.Type == html.ElementNode && n.Data == "dl" && len(folders) > 0 {
			folders = folders[:len(folders)-1]
		}
	}

	walk(doc)
	return entries, nil
}

func linkEntry(n *html.Node) (Entry, bool) {
	var (
		e       Entry
		iconURI string
	)
	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "href":
			e.Input.URL = strings.TrimSpace(attr.Val)
		case "icon":
			if v := strings.TrimSpace(attr.Val); strings.HasPrefix(v, "data:") || icon.IsRemote(v) {
				e.Input.Icon = v
			}
		case "icon_uri":
			if v := strings.TrimSpace(attr.Val); icon.IsRemote(v) {
				iconURI = v
			}
		case "tags":
			e.Input.Tags = strings.Split(attr.Val, ",")
		}
	}
	if e.Input.URL == "" || strings.HasPrefix(e.Input.URL, "place:") {
		return Entry{}, false
	}
	if e.Input.Icon == "" {
		e.Input.Icon = iconURI
	}

	e.Input.Title = strings.TrimSpace(textOf(n))
	if e.Input.Title == "" {
		e.Input.Title = e.Input.URL
	}
	return e, true
}

// textOf concatenates every text node below n.
func textOf(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

// ownText returns the direct text children of n, ignoring nested elements
// such as a following <DT> the parser placed inside an unclosed <DD>.
func ownText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
