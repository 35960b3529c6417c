package vysion

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// FeedRecord is one reported ransomware incident from the feed.
type FeedRecord struct {
	Company         string `json:"company"`
	CompanyLink     string `json:"company_link"`
	LinkPost        string `json:"link_post"`
	RansomwareGroup string `json:"group"`
	Date            string `json:"date"`
	Info            string `json:"info"`
	VictimCountry   string `json:"country"`
}

type envelope struct {
	Data *struct {
		Hits *[]json.RawMessage `json:"hits"`
	} `json:"data"`
}

// RawHit is one undecoded result row of a lookup.
type RawHit json.RawMessage

type hitDocument struct {
	Page *struct {
		Tag json.RawMessage `json:"tag"`
		URL *struct {
			Protocol string `json:"protocol"`
			Domain   string `json:"domain"`
			Path     string `json:"path"`
		} `json:"url"`
		Title string `json:"title"`
		Date  string `json:"date"`
	} `json:"page"`
}

// Hit is a decoded lookup result.
type Hit struct {
	Protocol string
	Domain   string
	Path     string
	Title    string
	Tag      string
	Date     time.Time
}

func (h Hit) URL() string {
	return h.Protocol + "://" + h.Domain + h.Path
}

// Vysion reports page dates without a zone; they are UTC.
const hitDateLayout = "2006-01-02T15:04:05.999999999Z"

var ErrMissingField = errors.New("missing field")

func (r RawHit) Decode() (Hit, error) {
	var doc hitDocument
	if err := json.Unmarshal(r, &doc); err != nil {
		return Hit{}, fmt.Errorf("failed to decode hit: %w", err)
	}

	page := doc.Page
	if page == nil {
		return Hit{}, fmt.Errorf("%w: page", ErrMissingField)
	}
	if page.URL == nil || page.URL.Protocol == "" {
		return Hit{}, fmt.Errorf("%w: page.url.protocol", ErrMissingField)
	}
	if page.URL.Domain == "" {
		return Hit{}, fmt.Errorf("%w: page.url.domain", ErrMissingField)
	}
	if page.Date == "" {
		return Hit{}, fmt.Errorf("%w: page.date", ErrMissingField)
	}

	date, err := ParseHitDate(page.Date)
	if err != nil {
		return Hit{}, err
	}

	hit := Hit{
		Protocol: page.URL.Protocol,
		Domain:   page.URL.Domain,
		Path:     page.URL.Path,
		Title:    page.Title,
		Date:     date,
	}
	hit.Tag = tagValue(page.Tag)

	return hit, nil
}

// tagValue returns page.tag.value when the tag is an object holding a string
// value. Any other shape leaves the hit untagged.
func tagValue(raw json.RawMessage) string {
	var tag struct {
		Value string `json:"value"`
	}
	if len(raw) == 0 || raw[0] != '{' {
		return ""
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return ""
	}
	return tag.Value
}

func ParseHitDate(s string) (time.Time, error) {
	t, err := time.Parse(hitDateLayout, strings.TrimSuffix(s, "Z")+"Z")
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid page.date %q: %w", s, err)
	}
	return t.UTC(), nil
}
