package scraper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/jgoulah/watersync/pkg/models"
)

// The usage page embeds its availability window in inline script state
var (
	startDateRe = regexp.MustCompile(`"startDate":"([^"]+)"`)
	endDateRe   = regexp.MustCompile(`"endDate":"([^"]+)"`)
)

// availDateLayout matches the RFC-1123 literals in the script state
const availDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// AvailableRange queries the portal for the inclusive window of calendar
// dates that currently have exportable data. The window is authoritative
// and can shrink or shift between cycles, so it is resolved fresh each
// cycle rather than cached.
func (s *Session) AvailableRange(ctx context.Context) (models.DateRange, error) {
	body, status, err := s.getPage(ctx, s.baseURL+usagePath)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("fetching usage page: %w", err)
	}
	if status != http.StatusOK {
		return models.DateRange{}, &RangeError{StatusCode: status, Message: "usage page unavailable"}
	}

	start, err := extractAvailDate(startDateRe, body)
	if err != nil {
		return models.DateRange{}, &RangeError{Message: fmt.Sprintf("start date: %v", err)}
	}
	end, err := extractAvailDate(endDateRe, body)
	if err != nil {
		return models.DateRange{}, &RangeError{Message: fmt.Sprintf("end date: %v", err)}
	}

	// The literals carry a GMT suffix but name civil dates; take the
	// date components as-is rather than converting zones
	return models.DateRange{
		Start: civilDate(start, s.loc),
		End:   civilDate(end, s.loc),
	}, nil
}

// civilDate rebuilds the calendar date of t as midnight in loc, ignoring
// t's own zone
func civilDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// extractAvailDate scans the page for one availability literal
func extractAvailDate(re *regexp.Regexp, body string) (time.Time, error) {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return time.Time{}, fmt.Errorf("literal not found in page")
	}

	t, err := time.Parse(availDateLayout, m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %q: %w", m[1], err)
	}
	return t, nil
}

// FetchRange downloads hourly readings for every day in the requested
// window, clamped to the available window. An inverted clamped window is
// the normal "already up to date" case and returns an empty mapping with
// no export calls. Days are fetched strictly sequentially: the portal's
// tokens are single-session and single-use, and a concurrent request
// would invalidate tokens held by another in-flight day.
//
// Returns the merged readings keyed by timestamp and the count of days
// that failed softly and were excluded.
func (s *Session) FetchRange(ctx context.Context, avail models.DateRange, start, end time.Time) (map[time.Time]float64, int, error) {
	start = midnight(start, s.loc)
	end = midnight(end, s.loc)

	if start.Before(avail.Start) {
		log.Printf("requested start %s is before available start %s, clamping",
			start.Format(requestDateLayout), avail.Start.Format(requestDateLayout))
		start = avail.Start
	}
	if end.After(avail.End) {
		log.Printf("requested end %s is after available end %s, clamping",
			end.Format(requestDateLayout), avail.End.Format(requestDateLayout))
		end = avail.End
	}

	all := make(map[time.Time]float64)
	if start.After(end) {
		return all, 0, nil
	}

	skipped := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}

		result := s.FetchDay(ctx, day)
		if result.Skipped {
			log.Printf("skipping %s: %s", day.Format(requestDateLayout), result.Reason)
			skipped++
			continue
		}
		for ts, gallons := range result.Readings {
			all[ts] = gallons
		}
	}

	return all, skipped, nil
}

// midnight normalizes a timestamp to the start of its calendar day in loc
func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
