// Package tariff is the one place that knows the shape of the Bahamas Customs
// tariff search page. The site offers no schema or availability contract, so
// every response is treated as untrusted and failures come back as strings,
// never as errors to the caller.
package tariff

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tariffbench/internal/config"
	"tariffbench/internal/util"
)

const (
	ResultNoCode      = "No HTS code predicted"
	ResultNoTable     = "No result table found"
	ResultRowNotFound = "Result table found, but HTS code row missing"
)

// Lookup is the reconciliation capability the pipeline depends on.
type Lookup interface {
	Lookup(code string) string
}

type Client struct {
	searchURL  string
	httpClient *http.Client
	limiter    *RateLimiter
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		searchURL:  cfg.TariffSearchURL,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TariffTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.TariffRateLimitRPS),
	}
}

// Lookup fetches the tariff search page for code and returns the first row of
// the first table whose leading cell contains the code's first 6 characters,
// cells joined with " | ". Substring matching is deliberate: the site renders
// codes like "8501.10 - Motors". A row labeled with a longer code that happens
// to contain the query is accepted too; the result is advisory.
func (c *Client) Lookup(code string) string {
	if code == "" {
		return ResultNoCode
	}

	c.limiter.WaitTurn()

	resp, err := c.httpClient.Get(c.searchURL + "?q=" + url.QueryEscape(code))
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Sprintf("Error: tariff search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	return matchTable(doc, code)
}

func matchTable(doc *goquery.Document, code string) string {
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return ResultNoTable
	}

	prefix := code
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}

	rows := table.Find("tr")
	if rows.Length() < 2 {
		return ResultRowNotFound
	}

	result := ""
	rows.Slice(1, rows.Length()).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := []string{}
		row.Find("td,th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, util.NormalizeSpaces(cell.Text()))
		})
		if len(cells) == 0 {
			return true
		}
		if strings.Contains(cells[0], prefix) {
			result = strings.Join(cells, " | ")
			return false
		}
		return true
	})

	if result == "" {
		return ResultRowNotFound
	}
	return result
}
