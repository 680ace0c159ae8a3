// Package extract turns loaded review pages into ReviewRecords.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"review-scraper/config"
	"review-scraper/models"
	"review-scraper/services"
)

// Selector reads reviews from rendered HTML with CSS selectors. A field whose
// element is absent is left nil.
type Selector struct {
	sel config.Selectors
}

func NewSelector(sel config.Selectors) *Selector {
	return &Selector{sel: sel}
}

func (s *Selector) Extract(page *models.Page) ([]*models.ReviewRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	restaurantID := s.restaurantID(doc, page.URL)
	reviews := make([]*models.ReviewRecord, 0)

	doc.Find(s.sel.Item).Each(func(_ int, item *goquery.Selection) {
		r := &models.ReviewRecord{
			ID:           attr(item, s.sel.ReviewIDAttr),
			RestaurantID: restaurantID,
			UserID:       attr(item, s.sel.UserIDAttr),
			UserName:     text(item, s.sel.UserName),
			Title:        text(item, s.sel.Title),
			Content:      text(item, s.sel.Content),
			CreatedAt:    text(item, s.sel.CreatedAt),
		}
		if rating := text(item, s.sel.Rating); rating != nil {
			r.Rating = *rating
		}
		reviews = append(reviews, r)
	})

	return reviews, nil
}

// restaurantID prefers the id attribute anywhere on the page and falls back
// to the last path segment of the url.
func (s *Selector) restaurantID(doc *goquery.Document, pageURL string) string {
	if s.sel.RestaurantIDAttr != "" {
		if v, ok := doc.Find("[" + s.sel.RestaurantIDAttr + "]").First().Attr(s.sel.RestaurantIDAttr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return RestaurantIDFromURL(pageURL)
}

// RestaurantIDFromURL returns the last non-empty path segment of u.
func RestaurantIDFromURL(u string) string {
	parsed, err := url.Parse(u)
	path := u
	if err == nil {
		path = parsed.Path
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	return segs[len(segs)-1]
}

func attr(s *goquery.Selection, name string) *string {
	if name == "" {
		return nil
	}
	v, ok := s.Attr(name)
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	return &v
}

func text(s *goquery.Selection, selector string) *string {
	if selector == "" {
		return nil
	}
	found := s.Find(selector).First()
	if found.Length() == 0 {
		return nil
	}
	v := services.NormaliseText(found.Text())
	return &v
}
