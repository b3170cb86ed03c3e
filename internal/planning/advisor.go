package planning

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/antoniostano/aiplanner/internal/tasks"
)

// AdvisorOptions holds the wellness thresholds. A zero MaxContinuous,
// DailyLimit or MinTransition disables that check.
type AdvisorOptions struct {
	MaxContinuous time.Duration
	MinBreak      time.Duration
	DailyLimit    time.Duration
	MinTransition time.Duration
}

func DefaultAdvisorOptions() AdvisorOptions {
	return AdvisorOptions{
		MaxContinuous: 3 * time.Hour,
		MinBreak:      10 * time.Minute,
		DailyLimit:    8 * time.Hour,
		MinTransition: 15 * time.Minute,
	}
}

func (o AdvisorOptions) Validate() error {
	if o.MaxContinuous < 0 || o.MinBreak < 0 || o.DailyLimit < 0 || o.MinTransition < 0 {
		return fmt.Errorf("advisor thresholds must not be negative")
	}
	return nil
}

type Advisor struct {
	opts AdvisorOptions
}

func NewAdvisor(opts AdvisorOptions) *Advisor {
	return &Advisor{opts: opts}
}

type advice struct {
	at   time.Time
	text string
}

// Advise derives wellness recommendations for a schedule, ordered by the
// instant that triggered each one.
func (a *Advisor) Advise(ts []tasks.Task) []string {
	out := make([]string, 0)
	if len(ts) == 0 {
		return out
	}
	sorted := append([]tasks.Task(nil), ts...)
	tasks.SortByStart(sorted)

	var found []advice
	found = append(found, a.longSpans(sorted)...)
	found = append(found, a.overloadedDays(sorted)...)
	found = append(found, a.tightTransitions(sorted)...)

	sort.SliceStable(found, func(i, j int) bool { return found[i].at.Before(found[j].at) })
	for _, f := range found {
		out = append(out, f.text)
	}
	return out
}

// longSpans joins tasks separated by less than MinBreak into working spans and
// flags the ones lasting MaxContinuous or more.
func (a *Advisor) longSpans(sorted []tasks.Task) []advice {
	if a.opts.MaxContinuous <= 0 {
		return nil
	}
	var out []advice
	flush := func(start, end time.Time, names []string) {
		if span := end.Sub(start); span >= a.opts.MaxContinuous {
			out = append(out, advice{
				at: start,
				text: fmt.Sprintf("Take a break: %s of continuous work from %s to %s (%s). Step away for at least %s.",
					formatSpan(span), start.Format("15:04"), end.Format("15:04"),
					strings.Join(names, ", "), formatSpan(a.breakLength())),
			})
		}
	}

	start, end := sorted[0].StartTime, sorted[0].EndTime
	names := []string{sorted[0].Name}
	for _, t := range sorted[1:] {
		gap := t.StartTime.Sub(end)
		if gap <= 0 || gap < a.opts.MinBreak {
			if t.EndTime.After(end) {
				end = t.EndTime
			}
			names = append(names, t.Name)
			continue
		}
		flush(start, end, names)
		start, end = t.StartTime, t.EndTime
		names = []string{t.Name}
	}
	flush(start, end, names)
	return out
}

type dayLoad struct {
	label    string
	total    time.Duration
	crossed  time.Time
	overload bool
}

// overloadedDays sums the union of busy time per calendar day and flags days
// above DailyLimit at the instant the limit is crossed.
func (a *Advisor) overloadedDays(sorted []tasks.Task) []advice {
	if a.opts.DailyLimit <= 0 {
		return nil
	}
	loads := make(map[string]*dayLoad)
	var order []string
	for _, iv := range mergeBusy(sorted) {
		for s := iv.Start; s.Before(iv.End); {
			y, m, d := s.Date()
			e := time.Date(y, m, d+1, 0, 0, 0, 0, s.Location())
			if e.After(iv.End) {
				e = iv.End
			}
			key := s.Format("2006-01-02")
			load, ok := loads[key]
			if !ok {
				load = &dayLoad{label: s.Format("Mon 02 Jan")}
				loads[key] = load
				order = append(order, key)
			}
			chunk := e.Sub(s)
			if !load.overload && load.total+chunk > a.opts.DailyLimit {
				load.overload = true
				load.crossed = s.Add(a.opts.DailyLimit - load.total)
			}
			load.total += chunk
			s = e
		}
	}

	var out []advice
	for _, key := range order {
		load := loads[key]
		if !load.overload {
			continue
		}
		out = append(out, advice{
			at: load.crossed,
			text: fmt.Sprintf("Overloaded day: %s has %s scheduled, past the %s limit from %s. Consider moving something to another day.",
				load.label, formatSpan(load.total), formatSpan(a.opts.DailyLimit), load.crossed.Format("15:04")),
		})
	}
	return out
}

// tightTransitions flags tasks followed too closely by the next task that
// does not overlap them. A task whose end falls inside another task is not a
// transition, and tasks ending at the same instant are reported once.
func (a *Advisor) tightTransitions(sorted []tasks.Task) []advice {
	if a.opts.MinTransition <= 0 {
		return nil
	}
	var out []advice
	seen := make(map[int64]bool)
	for i, cur := range sorted {
		if stillBusyAt(sorted, i, cur.EndTime) || seen[cur.EndTime.UnixNano()] {
			continue
		}
		rest := sorted[i+1:]
		j := sort.Search(len(rest), func(k int) bool { return !rest[k].StartTime.Before(cur.EndTime) })
		if j == len(rest) {
			continue
		}
		next := rest[j]
		gap := next.StartTime.Sub(cur.EndTime)
		if gap >= a.opts.MinTransition {
			continue
		}
		seen[cur.EndTime.UnixNano()] = true
		out = append(out, advice{
			at: cur.EndTime,
			text: fmt.Sprintf("High intensity: only %d min between '%s' and '%s' at %s. Insert a %s break or some movement.",
				int(gap/time.Minute), cur.Name, next.Name, cur.EndTime.Format("15:04"), formatSpan(a.opts.MinTransition)),
		})
	}
	return out
}

// stillBusyAt reports whether a task other than sorted[skip] runs across t.
func stillBusyAt(sorted []tasks.Task, skip int, t time.Time) bool {
	for k, other := range sorted {
		if !other.StartTime.Before(t) {
			break
		}
		if k != skip && other.EndTime.After(t) {
			return true
		}
	}
	return false
}

func (a *Advisor) breakLength() time.Duration {
	if a.opts.MinBreak > 0 {
		return a.opts.MinBreak
	}
	return 10 * time.Minute
}
