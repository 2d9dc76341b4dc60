// Package scheduler fires a single job on a cron schedule for daemon mode.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule computes the next fire time after a reference time.
type Schedule interface {
	Next(after time.Time) time.Time
}

var aliases = map[string]string{
	"@hourly":  "0 * * * *",
	"@daily":   "0 0 * * *",
	"@weekly":  "0 0 * * 0",
	"@monthly": "0 0 1 * *",
}

// Parse parses a cron expression. Supported forms are the standard five
// fields ("minute hour dom month dow"), the aliases @hourly, @daily, @weekly
// and @monthly, and intervals such as "@every 30m".
func Parse(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty cron expression")
	}
	if std, ok := aliases[expr]; ok {
		expr = std
	}

	if rest, ok := strings.CutPrefix(expr, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", rest, err)
		}
		if d < time.Minute {
			return nil, fmt.Errorf("minimum interval is 1 minute, got %s", d)
		}
		return Interval(d), nil
	}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("expected 5 fields, got %d in %q", len(fields), expr)
	}

	specs := []struct {
		name       string
		floor, top int
	}{
		{"minute", 0, 59},
		{"hour", 0, 23},
		{"day-of-month", 1, 31},
		{"month", 1, 12},
		{"day-of-week", 0, 6},
	}
	var sets [5]bitset
	for i, sp := range specs {
		bs, err := parseField(fields[i], sp.floor, sp.top)
		if err != nil {
			return nil, fmt.Errorf("%s field: %w", sp.name, err)
		}
		sets[i] = bs
	}
	return &Cron{minute: sets[0], hour: sets[1], dom: sets[2], month: sets[3], dow: sets[4]}, nil
}

type bitset uint64

func (b bitset) has(v int) bool { return b&(1<<uint(v)) != 0 }
func (b *bitset) set(v int)     { *b |= 1 << uint(v) }

// Cron matches five cron fields. Day-of-month and day-of-week must both match.
type Cron struct {
	minute, hour, dom, month, dow bitset
}

// Next returns the first matching minute strictly after after, in after's
// location. It returns the zero time if nothing matches within four years.
func (c *Cron) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(4, 0, 0)

	for t.Before(limit) {
		switch {
		case !c.month.has(int(t.Month())):
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
		case !c.dom.has(t.Day()) || !c.dow.has(int(t.Weekday())):
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
		case !c.hour.has(t.Hour()):
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, t.Location())
		case !c.minute.has(t.Minute()):
			t = t.Add(time.Minute)
		default:
			return t
		}
	}
	return time.Time{}
}

// Interval fires every fixed duration, counted from the start of the
// reference minute.
type Interval time.Duration

// Next returns the next fire time after after.
func (i Interval) Next(after time.Time) time.Time {
	return after.Truncate(time.Minute).Add(time.Duration(i))
}

// parseField parses a comma-separated list of *, values, ranges (a-b) and
// steps (*/n, a-b/n, a/n).
func parseField(field string, floor, top int) (bitset, error) {
	var bs bitset
	for _, part := range strings.Split(field, ",") {
		p, err := parsePart(part, floor, top)
		if err != nil {
			return 0, err
		}
		bs |= p
	}
	if bs == 0 {
		return 0, fmt.Errorf("field %q produced empty set", field)
	}
	return bs, nil
}

func parsePart(part string, floor, top int) (bitset, error) {
	span, step := part, 1
	if base, s, ok := strings.Cut(part, "/"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid step in %q", part)
		}
		span, step = base, n
	}

	var lo, hi int
	switch {
	case span == "*":
		lo, hi = floor, top
	case strings.Contains(span, "-"):
		a, b, _ := strings.Cut(span, "-")
		var err error
		if lo, err = strconv.Atoi(a); err != nil {
			return 0, fmt.Errorf("invalid range start in %q", part)
		}
		if hi, err = strconv.Atoi(b); err != nil {
			return 0, fmt.Errorf("invalid range end in %q", part)
		}
	default:
		v, err := strconv.Atoi(span)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q", part)
		}
		lo, hi = v, v
		if step > 1 {
			hi = top
		}
	}

	if lo < floor || hi > top || lo > hi {
		return 0, fmt.Errorf("range %d-%d out of bounds [%d, %d]", lo, hi, floor, top)
	}
	var bs bitset
	for v := lo; v <= hi; v += step {
		bs.set(v)
	}
	return bs, nil
}
