package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seawork/vacancy-crawler/internal/store"
)

var companyLinkPattern = regexp.MustCompile(`/company/\d+`)

// Company parses a company detail page into the contact fields. Name and
// URL stay empty; the caller knows both from the lookup that led here.
func Company(body []byte) (store.Company, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return store.Company{}, fmt.Errorf("parse company page: %w", err)
	}
	content := doc.Find("div.company-full-content").First()
	if content.Length() == 0 {
		return store.Company{}, ErrNoContent
	}

	var c store.Company
	content.Find("div.colmn").Each(func(_ int, col *goquery.Selection) {
		span := col.Find("span").First()
		if span.Length() == 0 {
			return
		}
		rawLabel := strings.TrimSpace(span.Text())
		value := labelValue(col, rawLabel)

		switch normalizeLabel(rawLabel) {
		case "Country":
			c.Country = value
		case "City":
			c.City = value
		case "Phone", "Phone number":
			c.Phones = collectPhones(col, value)
		case "E-mail":
			c.Email = emailValue(col, value)
		case "Website":
			c.Website = websiteValue(col, value)
		case "Address":
			c.Address = value
		}
	})
	return c, nil
}

// collectPhones gathers the number from the labeled row plus any directly
// following label-less rows, which is how the site lists extra numbers.
func collectPhones(col *goquery.Selection, first string) string {
	phones := make([]string, 0, 2)
	if first != "" {
		phones = append(phones, first)
	}
	for sib := col.Next(); sib.Length() > 0; sib = sib.Next() {
		if !sib.Is("div.colmn") {
			continue
		}
		if sib.Find("span").Length() > 0 {
			break
		}
		if text := strings.TrimSpace(sib.Text()); text != "" {
			phones = append(phones, text)
		}
	}
	return strings.Join(phones, ", ")
}

// CompanySearchLink scans a search-results page for the first link to a
// company detail page whose visible text mentions name. The href comes back
// as written in the document; relative paths are the caller's problem.
func CompanySearchLink(body []byte, name string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	needle := strings.ToLower(strings.TrimSpace(name))

	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		link, _ := a.Attr("href")
		if !companyLinkPattern.MatchString(link) {
			return true
		}
		if needle != "" && !strings.Contains(strings.ToLower(a.Text()), needle) {
			return true
		}
		href = link
		return false
	})
	return href, href != ""
}
