package gather

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Schedule is a wall-clock time of day in a fixed location.
type Schedule struct {
	Hour, Minute int
	Loc          *time.Location
}

// ParseSchedule parses HH:MM in loc.
func ParseSchedule(s string, loc *time.Location) (Schedule, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid schedule %q: want HH:MM", s)
	}
	return Schedule{Hour: t.Hour(), Minute: t.Minute(), Loc: loc}, nil
}

// Next returns the first scheduled instant strictly after now.
func (s Schedule) Next(now time.Time) time.Time {
	local := now.In(s.Loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.Hour, s.Minute, 0, 0, s.Loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.Hour, s.Minute, 0, 0, s.Loc)
	}
	return next
}

// RunDaily runs g once immediately and then at every scheduled time until
// ctx is cancelled. A failed pass is logged and retried at the next slot.
func RunDaily(ctx context.Context, g Gatherer, s Schedule) error {
	log := slog.Default().With("gatherer", g.Name())
	for {
		start := time.Now()
		if err := g.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("gather pass failed", "error", err)
		} else {
			log.Info("gather pass done", "took", time.Since(start).Round(time.Millisecond))
		}

		next := s.Next(time.Now())
		log.Info("next gather pass", "at", next.Format(time.RFC3339))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
