package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/seawork/vacancy-crawler/internal/store"
)

// Vacancy parses one posting page. It returns ErrNoContent when the page
// carries no vacancy container, which is how the source serves IDs that do
// not exist yet.
func Vacancy(id int64, body []byte) (store.Vacancy, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return store.Vacancy{}, fmt.Errorf("parse vacancy %d: %w", id, err)
	}
	content := doc.Find("div.vacancy-full-content").First()
	if content.Length() == 0 {
		return store.Vacancy{}, ErrNoContent
	}

	v := store.Vacancy{ID: id}

	if title := content.Find("h1").First(); title.Length() > 0 {
		// Headings read "Vacancy Master on Bulk Carrier".
		v.Title = strings.TrimSpace(strings.Replace(strings.TrimSpace(title.Text()), "Vacancy", "", 1))
	}

	dates := content.Find("div.datepub")
	if dates.Length() > 0 {
		v.Published = strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(dates.First().Text()), "Posted:", ""))
	}
	if dates.Length() > 1 {
		v.Views = strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(dates.Eq(1).Text()), "Views:", ""))
	}

	content.Find("div.colmn").Each(func(_ int, col *goquery.Selection) {
		span := col.Find("span").First()
		if span.Length() == 0 {
			return
		}
		rawLabel := strings.TrimSpace(span.Text())
		value := labelValue(col, rawLabel)

		switch normalizeLabel(rawLabel) {
		case "Salary":
			v.Salary = value
		case "Joining date":
			v.JoinDate = value
		case "Voyage duration":
			v.ContractLength = value
		case "Sailing area":
			v.SailingArea = value
		case "Vessel type":
			v.VesselType = value
		case "Vessel name":
			v.VesselName = value
		case "Year of vessel's construction":
			v.BuiltYear = value
		case "DWT":
			v.DWT = value
		case "Main engine type":
			v.EngineType = value
		case "BHP":
			v.EnginePower = value
		case "Crew on board":
			v.Crew = value
		case "English level":
			v.EnglishLevel = value
		case "Age limit":
			v.AgeLimit = value
		case "Visa available":
			v.VisaRequired = value
		case "Experience in rank":
			v.Experience = value
		case "Experience on the same type vessel":
			v.ExperienceTypeVessel = value
		case "Tel № to apply for a job":
			v.Phone = value
		case "Contact e-mail":
			v.Email = emailValue(col, value)
		case "Recommended e-mail subject":
			v.EmailSubject = value
		case "Relevant manager name":
			v.Manager = value
		case "Employer":
			v.Agency = anchorText(col, value)
		case "Website":
			v.Website = websiteValue(col, value)
		}
	})

	// The highlighted price block wins over any row-derived salary.
	if strong := content.Find("div.priceBig strong").First(); strong.Length() > 0 {
		if salary := strings.TrimSpace(strong.Text()); salary != "" {
			v.Salary = salary
		}
	}

	v.AdditionalInfo = additionalInfo(content)

	// Some layouts publish the phone outside the labeled rows.
	if v.Phone == "" {
		if phone := content.Find("div.phone").First(); phone.Length() > 0 {
			v.Phone = strings.TrimSpace(phone.Text())
		}
	}

	return v, nil
}

// additionalInfo collects the free-text block between the "Additional info"
// heading and the closing hr.hr2 rule. Line breaks survive as newline
// tokens in the joined text.
func additionalInfo(content *goquery.Selection) string {
	heading := content.Find("strong.site_subtitle").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), "Additional info")
	}).First()
	if heading.Length() == 0 {
		return ""
	}

	var parts []string
	for node := heading.Get(0).NextSibling; node != nil; node = node.NextSibling {
		if node.Type == html.ElementNode && node.Data == "hr" && nodeHasClass(node, "hr2") {
			break
		}
		switch {
		case node.Type == html.TextNode:
			if text := strings.TrimSpace(node.Data); text != "" {
				parts = append(parts, text)
			}
		case node.Type == html.ElementNode && node.Data == "br":
			parts = append(parts, "\n")
		case node.Type == html.ElementNode:
			if text := strings.TrimSpace(goquery.NewDocumentFromNode(node).Text()); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func nodeHasClass(node *html.Node, class string) bool {
	for _, attr := range node.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, candidate := range strings.Fields(attr.Val) {
			if candidate == class {
				return true
			}
		}
	}
	return false
}
