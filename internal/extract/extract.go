// Package extract parses the source's vacancy and company pages into
// domain records. Parsing is deterministic and side-effect-free; all
// values come back trimmed, with the empty string meaning the field was
// absent on the page.
package extract

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoContent reports that the expected content container is missing from
// the document. For vacancy pages this is the "ID does not exist yet"
// signal the scan loop counts misses by.
var ErrNoContent = errors.New("content container not found")

// The em-dash is the site's placeholder for fields without a value.
const emptyPlaceholder = "—"

// labelValue returns the row text with the label substring removed. Rows
// look like <div class="colmn"><span>Label:</span> value</div>.
func labelValue(col *goquery.Selection, rawLabel string) string {
	return strings.TrimSpace(strings.ReplaceAll(col.Text(), rawLabel, ""))
}

// normalizeLabel strips colons so "Vessel type:" and "Vessel type" key the
// same table entry.
func normalizeLabel(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, ":", ""))
}

// anchorText prefers the text of a row's anchor over the plain row value.
func anchorText(col *goquery.Selection, fallback string) string {
	if a := col.Find("a").First(); a.Length() > 0 {
		if text := strings.TrimSpace(a.Text()); text != "" {
			return text
		}
	}
	return fallback
}

// websiteValue prefers the anchor href over the row text and drops the
// em-dash placeholder.
func websiteValue(col *goquery.Selection, fallback string) string {
	value := fallback
	if a := col.Find("a").First(); a.Length() > 0 {
		if href, ok := a.Attr("href"); ok && strings.TrimSpace(href) != "" {
			value = strings.TrimSpace(href)
		}
	}
	if value == emptyPlaceholder {
		return ""
	}
	return value
}

// emailValue prefers anchor text; an anchor that only carries a mailto href
// contributes the address portion of that href.
func emailValue(col *goquery.Selection, fallback string) string {
	a := col.Find("a").First()
	if a.Length() == 0 {
		return fallback
	}
	if text := strings.TrimSpace(a.Text()); text != "" {
		return text
	}
	if href, ok := a.Attr("href"); ok {
		return strings.TrimSpace(strings.TrimPrefix(href, "mailto:"))
	}
	return fallback
}
