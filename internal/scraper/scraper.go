// Package scraper is the TDF.org site adapter: it logs in, walks the
// offerings listing, and extracts raw (title, date strings) pairs. It is
// the only part of the system that knows about page structure, and any
// failure here is a data-source failure that stops the run before state
// is touched.
//
// The site sits behind a WAF, so the selectors are best effort against
// the markup observed in practice; a selector miss degrades to an empty
// or partial result, never to corrupted state.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"
	"github.com/go-resty/resty/v2"

	"github.com/Mantene/tdf-alerts/internal/config"
	"github.com/Mantene/tdf-alerts/internal/snapshot"
)

// LoginError indicates the site rejected the login rather than the
// network failing.
type LoginError struct {
	Reason string
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login rejected: %s", e.Reason)
}

// IsLoginError checks whether err is a rejected login.
func IsLoginError(err error) bool {
	var le *LoginError
	return errors.As(err, &le)
}

// Scraper fetches show availability from TDF.
type Scraper struct {
	client       *resty.Client
	logger       *slog.Logger
	loginURL     string
	offeringsURL string
	creds        config.Credentials
}

// New creates a scraper. The resty client keeps the session cookies from
// login across the offerings and detail requests.
func New(cfg config.ScrapeConfig, creds config.Credentials, logger *slog.Logger) *Scraper {
	return &Scraper{
		client:       resty.New().SetTimeout(cfg.Timeout),
		logger:       logger,
		loginURL:     cfg.LoginURL,
		offeringsURL: cfg.OfferingsURL,
		creds:        creds,
	}
}

type offering struct {
	title string
	url   string
}

// FetchAvailability logs in, lists current offerings, and collects the
// date strings from each offering's page. Zero listings is a valid
// result; an error means the snapshot could not be produced at all.
func (s *Scraper) FetchAvailability(ctx context.Context) ([]snapshot.Listing, error) {
	if err := s.login(ctx); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	doc, err := s.fetchDoc(ctx, s.offeringsURL)
	if err != nil {
		return nil, fmt.Errorf("fetch offerings: %w", err)
	}

	offerings := s.parseOfferings(doc)
	s.logger.Info("Offerings page parsed", "offerings", len(offerings))

	listings := make([]snapshot.Listing, 0, len(offerings))
	for _, off := range offerings {
		listing := snapshot.Listing{Title: off.title, URL: off.url}
		if off.url != "" {
			detail, err := s.fetchDoc(ctx, off.url)
			if err != nil {
				s.logger.Warn("Skipping offering page", "title", off.title, "url", off.url, "error", err)
				continue
			}
			listing.Dates = parseDates(detail)
		}
		listings = append(listings, listing)
	}

	return listings, nil
}

// login posts the credential form and checks the response for the site's
// error markers. A rendered error element means rejected credentials.
func (s *Scraper) login(ctx context.Context) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"email":    s.creds.Email,
			"password": s.creds.Password,
		}).
		Post(s.loginURL)
	if err != nil {
		return fmt.Errorf("post login form: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return &LoginError{Reason: fmt.Sprintf("status %d", resp.StatusCode())}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return fmt.Errorf("parse login response: %w", err)
	}
	if sel := doc.Find(".error, .alert-danger, [class*=\"error\"]").First(); sel.Length() > 0 {
		reason := strings.TrimSpace(sel.Text())
		if reason == "" {
			reason = "error element present"
		}
		return &LoginError{Reason: reason}
	}

	s.logger.Info("Login successful", "url", s.loginURL)
	return nil
}

func (s *Scraper) fetchDoc(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var body string
	err := retry.Do(
		func() error {
			resp, getErr := s.client.R().SetContext(ctx).Get(pageURL)
			if getErr != nil {
				return fmt.Errorf("get %s: %w", pageURL, getErr)
			}
			code := resp.StatusCode()
			switch {
			case code >= 500:
				return fmt.Errorf("get %s: status %d", pageURL, code)
			case code >= 400:
				return retry.Unrecoverable(fmt.Errorf("get %s: status %d", pageURL, code))
			}
			body = resp.String()
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(15*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying page fetch after error", "attempt", n, "url", pageURL, "error", retryErr)
		}),
	)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// parseOfferings extracts (title, view URL) pairs from the offerings
// listing. Each row carries its title in the first cell or a title-ish
// element and a "View" link to the offering page.
func (s *Scraper) parseOfferings(doc *goquery.Document) []offering {
	var out []offering
	doc.Find("tr, .listing-item, .show-item").Each(func(_ int, row *goquery.Selection) {
		title := strings.TrimSpace(row.Find(".title, .show-title, td, h3").First().Text())
		if title == "" {
			return
		}

		var href string
		row.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if strings.Contains(strings.ToLower(a.Text()), "view") {
				href, _ = a.Attr("href")
				return false
			}
			return true
		})
		if href == "" {
			return
		}

		out = append(out, offering{title: title, url: s.resolveURL(href)})
	})
	return out
}

func (s *Scraper) resolveURL(href string) string {
	base, err := url.Parse(s.offeringsURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

var monthAbbrevs = []string{
	"jan", "feb", "mar", "apr", "may", "jun",
	"jul", "aug", "sep", "oct", "nov", "dec",
}

// parseDates collects date-looking strings from an offering page. Real
// validation happens in the normalizer; this only filters out elements
// that clearly are not dates.
func parseDates(doc *goquery.Document) []string {
	var dates []string
	doc.Find(".date, [class*=\"date\"], [class*=\"performance\"], time, [datetime], .availability").
		Each(func(_ int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if text == "" {
				return
			}
			if looksLikeDate(text) {
				dates = append(dates, text)
			}
		})
	return dates
}

func looksLikeDate(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range monthAbbrevs {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return strings.ContainsFunc(text, unicode.IsDigit)
}
