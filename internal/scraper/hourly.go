package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// requestDateLayout is the mm/dd/yyyy format the export form expects
	requestDateLayout = "01/02/2006"

	// hourLabelLayout matches the per-row 12-hour clock labels ("1 AM")
	hourLabelLayout = "3 PM"

	// excelContentType is the declared type of a successful export
	excelContentType = "application/vnd.ms-excel"
)

// DayResult is the outcome of fetching one calendar day. A skipped day is
// a soft failure: it carries the reason for observability but never aborts
// a multi-day fetch.
type DayResult struct {
	Date     time.Time
	Readings map[time.Time]float64
	Skipped  bool
	Reason   string
}

func skippedDay(date time.Time, format string, args ...interface{}) DayResult {
	return DayResult{Date: date, Skipped: true, Reason: fmt.Sprintf(format, args...)}
}

// FetchDay downloads and parses the hourly export for one calendar day.
//
// The portal's tokens are single-use and rotate per POST, so the usage
// page is re-fetched immediately before each day's export POST; reusing a
// stale token set is a hard failure mode this two-call protocol avoids.
func (s *Session) FetchDay(ctx context.Context, date time.Time) DayResult {
	dateStr := date.Format(requestDateLayout)

	// Fresh tokens for this day's POST
	body, status, err := s.getPage(ctx, s.baseURL+usagePath)
	if err != nil {
		return skippedDay(date, "fetching usage page: %v", err)
	}
	if status != http.StatusOK {
		return skippedDay(date, "usage page returned status %d", status)
	}

	fields, err := ExtractHiddenFields(body)
	if err != nil {
		return skippedDay(date, "extracting tokens: %v", err)
	}

	// Export request simulating the download image-button click
	form := url.Values{}
	for k, v := range fields.FormValues() {
		form.Set(k, v)
	}
	form.Set("img_EXCEL_DOWNLOAD_IMAGE.x", "13")
	form.Set("img_EXCEL_DOWNLOAD_IMAGE.y", "9")
	form.Set("SD", dateStr)
	form.Set("dl_UOM", "GALLONS")

	resp, err := s.postForm(ctx, s.baseURL+usagePath, form)
	if err != nil {
		return skippedDay(date, "posting export request: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	location := resp.Header.Get("Location")
	if location == "" {
		return skippedDay(date, "export response had no download location (status %d)", resp.StatusCode)
	}

	payload, contentType, err := s.download(ctx, s.baseURL+location)
	if err != nil {
		return skippedDay(date, "downloading export: %v", err)
	}
	if !strings.Contains(contentType, excelContentType) {
		return skippedDay(date, "unexpected content type %q", contentType)
	}

	readings := parseHourlyExport(payload, date, s.loc)
	return DayResult{Date: date, Readings: readings}
}

// download GETs the export file and returns its body and declared type
func (s *Session) download(ctx context.Context, fileURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", s.baseURL+usagePath)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetching download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("reading download body: %w", err)
	}

	return string(body), resp.Header.Get("Content-Type"), nil
}

// parseHourlyExport decodes the tab-separated export payload. The first
// line is a header; each remaining non-blank line is "<hour-label>\t<consumption>"
// with a 12-hour clock label. Malformed lines are skipped individually.
func parseHourlyExport(payload string, date time.Time, loc *time.Location) map[time.Time]float64 {
	readings := make(map[time.Time]float64)

	lines := strings.Split(payload, "\n")
	if len(lines) < 2 {
		return readings
	}

	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			log.Printf("skipping malformed export row %q", line)
			continue
		}

		hour, err := time.Parse(hourLabelLayout, strings.TrimSpace(parts[0]))
		if err != nil {
			log.Printf("skipping row with bad hour label %q: %v", parts[0], err)
			continue
		}

		gallons, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			log.Printf("skipping row with bad consumption %q: %v", parts[1], err)
			continue
		}

		ts := time.Date(date.Year(), date.Month(), date.Day(), hour.Hour(), 0, 0, 0, loc)
		readings[ts] = gallons
	}

	return readings
}
