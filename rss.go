package pubcms

import (
	"encoding/xml"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	feedSize          = 50
	feedSummaryLength = 280
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Author      string `xml:"author,omitempty"`
	Category    string `xml:"category"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// handleFeed serves the newest published items of one category as RSS 2.0.
func (a *App) handleFeed(c echo.Context) error {
	cat, err := ParseCategory(c.Param("category"))
	if err != nil {
		return echo.ErrNotFound
	}
	published := true
	items, err := a.Cache.List(c.Request().Context(), ListFilter{
		Category:  cat,
		Published: &published,
		Limit:     feedSize,
	})
	if err != nil {
		return err
	}
	return a.renderRSS(c, cat, items)
}

func (a *App) renderRSS(c echo.Context, cat Category, items []ContentItem) error {
	base := a.Config.URL
	out := make([]rssItem, 0, len(items))
	for _, it := range items {
		link := BuildURL(base, "api", "content", strconv.FormatInt(it.ID, 10))
		desc := truncate(it.Content, feedSummaryLength)
		if it.Excerpt != nil && *it.Excerpt != "" {
			desc = *it.Excerpt
		}
		out = append(out, rssItem{
			Title:       it.Title,
			Link:        link,
			Description: desc,
			Author:      it.Author,
			Category:    string(it.Category),
			PubDate:     it.CreatedAt.Format(time.RFC1123Z),
			GUID:        link,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name + " - " + string(cat),
			Link:        BuildURL(base, "api", string(cat)),
			Description: a.Config.Description,
			Items:       out,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(feed)
}
