// Package bagfile locates recorded bag files covering a time window and
// plans where an excerpt of that window is written.
package bagfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"jjobs-core/params"
)

// TimestampLayout is the time field embedded in bag names,
// e.g. iplus_bag_2024-03-21-20-23-22_1.bag.
const TimestampLayout = "2006-01-02-15-04-05"

var ErrNoTimestamp = errors.New("bag name carries no timestamp")

// ExtractTimestamp parses the third "_"-separated field of a bag file name.
// Names are interpreted in loc (time.Local when nil).
func ExtractTimestamp(name string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	parts := strings.Split(filepath.Base(name), "_")
	if len(parts) <= 2 {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNoTimestamp, name)
	}
	ts, err := time.ParseInLocation(TimestampLayout, parts[2], loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %w", ErrNoTimestamp, name, err)
	}
	return ts, nil
}

// IsBag reports whether name is a finished (.bag) or recording (.active) bag.
func IsBag(name string) bool {
	return strings.HasSuffix(name, ".bag") || strings.HasSuffix(name, ".active")
}

// Part names one edge of a selection.
type Part string

const (
	PartStart Part = "start"
	PartEnd   Part = "end"
)

// Selection holds the bag containing each edge of a window; either may be empty.
type Selection struct {
	Start string
	End   string
}

func (s Selection) Empty() bool { return s.Start == "" && s.End == "" }

// Get returns the path selected for part.
func (s Selection) Get(p Part) string {
	if p == PartEnd {
		return s.End
	}
	return s.Start
}

// WriteMode reports whether part must be written (true) or appended (false).
// Only when both edges live in different bags is the end part appended.
func (s Selection) WriteMode(p Part) bool {
	if s.Start != "" && s.End != "" && s.Start != s.End {
		return p == PartStart
	}
	return true
}

// Find scans dir, newest name first, for the bags whose recording span
// [ts, ts+duration] strictly contains start and end.
func Find(dir string, start, end time.Time, duration time.Duration, loc *time.Location) (Selection, error) {
	var sel Selection

	entries, err := os.ReadDir(dir)
	if err != nil {
		return sel, fmt.Errorf("read bag dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && IsBag(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	for _, name := range names {
		if sel.Start != "" && sel.End != "" {
			break
		}
		ts, err := ExtractTimestamp(name, loc)
		if err != nil {
			continue
		}
		stop := ts.Add(duration)
		if ts.Before(start) && start.Before(stop) {
			sel.Start = filepath.Join(dir, name)
		}
		if ts.Before(end) && end.Before(stop) {
			sel.End = filepath.Join(dir, name)
		}
	}
	return sel, nil
}

// Plan is the excerpt to produce around one event.
type Plan struct {
	Output string
	Start  time.Time
	End    time.Time
}

// NewPlan builds <filtered_dir>/<target>_<reason>/<filtered_bag_name> and the
// window target ± time_range, creating the output directory.
func NewPlan(cfg params.Bag, target time.Time, reason string) (Plan, error) {
	if strings.ContainsAny(reason, `/\`) {
		return Plan{}, fmt.Errorf("reason %q must not contain path separators", reason)
	}
	dir := filepath.Join(ExpandHome(cfg.FilteredDir), target.Format(TimestampLayout)+"_"+reason)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Plan{}, fmt.Errorf("create %s: %w", dir, err)
	}
	span := minutes(cfg.TimeRangeMin)
	return Plan{
		Output: filepath.Join(dir, cfg.FilteredBagName),
		Start:  target.Add(-span),
		End:    target.Add(span),
	}, nil
}

// Locate plans the excerpt for target and finds the bags covering it.
func Locate(cfg params.Bag, target time.Time, reason string) (Plan, Selection, error) {
	plan, err := NewPlan(cfg, target, reason)
	if err != nil {
		return Plan{}, Selection{}, err
	}
	sel, err := Find(ExpandHome(cfg.Dir), plan.Start, plan.End, minutes(cfg.DurationMin), target.Location())
	if err != nil {
		return plan, Selection{}, err
	}
	return plan, sel, nil
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
