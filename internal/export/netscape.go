// Package export writes bookmarks in the Netscape bookmark file format that
// every browser can import.
package export

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

const header = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<!-- This is an automatically generated file.
     It will be read and overwritten.
     DO NOT EDIT! -->
<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
`

// WriteNetscape writes bookmarks grouped by category. Uncategorized bookmarks
// come first at the root, then one folder per category in the given order.
// Within a group bookmarks keep their slice order, so callers pass them sorted
// by position. Bookmarks whose category is not listed are written at the root.
func WriteNetscape(w io.Writer, bookmarks []domain.Bookmark, categories []domain.Category) error {
	bw := bufio.NewWriter(w)

	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}

	byCategory := make(map[string][]domain.Bookmark)
	var root []domain.Bookmark
	for _, b := range bookmarks {
		if b.CategoryID == nil || !known[*b.CategoryID] {
			root = append(root, b)
			continue
		}
		byCategory[*b.CategoryID] = append(byCategory[*b.CategoryID], b)
	}

	if _, err := bw.WriteString(header); err != nil {
		return err
	}
	for _, b := range root {
		writeBookmark(bw, &b, "    ")
	}
	for _, c := range categories {
		fmt.Fprintf(bw, "    <DT><H3>%s</H3>\n", html.EscapeString(c.Name))
		bw.WriteString("    <DL><p>\n")
		for _, b := range byCategory[c.ID] {
			writeBookmark(bw, &b, "        ")
		}
		bw.WriteString("    </DL><p>\n")
	}
	bw.WriteString("</DL><p>\n")

	return bw.Flush()
}

func writeBookmark(w *bufio.Writer, b *domain.Bookmark, indent string) {
	fmt.Fprintf(w, `%s<DT><A HREF="%s" ADD_DATE="%d"`, indent, html.EscapeString(b.URL), b.CreatedAt.Unix())
	if b.Icon != "" {
		fmt.Fprintf(w, ` ICON="%s"`, html.EscapeString(b.Icon))
	}
	if len(b.Tags) > 0 {
		fmt.Fprintf(w, ` TAGS="%s"`, html.EscapeString(strings.Join(b.Tags, ",")))
	}
	fmt.Fprintf(w, ">%s</A>\n", html.EscapeString(b.Title))
	if b.Description != "" {
		fmt.Fprintf(w, "%s<DD>%s\n", indent, html.EscapeString(b.Description))
	}
}
