package us

import (
	"errors"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// settleOffset is how long after midnight ET a session's daily bar is
// considered final (extended hours close at 20:00).
const settleOffset = 20*time.Hour + 5*time.Minute

// CalendarClient is the part of the Alpaca trading API used to find trading
// days. *alpaca.Client satisfies it.
type CalendarClient interface {
	GetCalendar(req alpaca.GetCalendarRequest) ([]alpaca.CalendarDay, error)
}

// NewCalendarClient creates an Alpaca trading client for calendar lookups.
func NewCalendarClient(apiKey, apiSecret, baseURL string) *alpaca.Client {
	return alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
}

// LatestFinishedTradingDay returns the most recent trading day whose session
// has settled as of now. Today counts only after 20:05 ET.
func LatestFinishedTradingDay(client CalendarClient, now time.Time) (time.Time, error) {
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, fmt.Errorf("loading ET timezone: %w", err)
	}
	now = now.In(et)

	days, err := client.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("GetCalendar: %w", err)
	}
	if len(days) == 0 {
		return time.Time{}, errors.New("no trading days returned from calendar")
	}

	for i := len(days) - 1; i >= 0; i-- {
		day, err := time.ParseInLocation("2006-01-02", days[i].Date, et)
		if err != nil {
			continue
		}
		if now.Before(day.Add(settleOffset)) {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, errors.New("could not determine latest finished trading day")
}
