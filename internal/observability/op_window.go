package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

// OpStats summarizes one schedule operation over the recent window. Results
// counts outcomes by the same labels as schedule_ops_total.
type OpStats struct {
	Op          string         `json:"op"`
	Samples     int            `json:"samples"`
	Results     map[string]int `json:"results"`
	ErrorRate   float64        `json:"error_rate"`
	P50MS       float64        `json:"p50_ms"`
	P95MS       float64        `json:"p95_ms"`
	MaxMS       float64        `json:"max_ms"`
	TargetP95MS float64        `json:"target_p95_ms,omitempty"`
	OverTarget  bool           `json:"over_target"`
}

type OpSnapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	MaxAge      string    `json:"max_age"`
	PerOpLimit  int       `json:"per_op_limit"`
	Ops         []OpStats `json:"ops"`
}

type opSample struct {
	at     time.Time
	ms     float64
	result string
}

// opWindow keeps the latest outcomes of each op. Samples older than maxAge
// are dropped when a snapshot is taken.
type opWindow struct {
	mu     sync.Mutex
	limit  int
	maxAge time.Duration
	now    func() time.Time
	byOp   map[string][]opSample
}

func newOpWindow(limit int, maxAge time.Duration) *opWindow {
	if limit <= 0 {
		limit = 256
	}
	if maxAge <= 0 {
		maxAge = 15 * time.Minute
	}
	return &opWindow{
		limit:  limit,
		maxAge: maxAge,
		now:    time.Now,
		byOp:   make(map[string][]opSample),
	}
}

func (w *opWindow) record(op, result string, d time.Duration) {
	if op == "" || d < 0 {
		return
	}
	if result == "" {
		result = "ok"
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	s := append(w.byOp[op], opSample{at: w.now(), ms: float64(d) / float64(time.Millisecond), result: result})
	if len(s) > w.limit {
		s = s[len(s)-w.limit:]
	}
	w.byOp[op] = s
}

func (w *opWindow) snapshot() OpSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.maxAge)
	names := make([]string, 0, len(w.byOp))
	for op, s := range w.byOp {
		keep := sort.Search(len(s), func(i int) bool { return s[i].at.After(cutoff) })
		if keep == len(s) {
			delete(w.byOp, op)
			continue
		}
		w.byOp[op] = s[keep:]
		names = append(names, op)
	}
	sort.Strings(names)

	ops := make([]OpStats, 0, len(names))
	for _, op := range names {
		ops = append(ops, summarize(op, w.byOp[op]))
	}
	return OpSnapshot{
		GeneratedAt: now.UTC(),
		MaxAge:      w.maxAge.String(),
		PerOpLimit:  w.limit,
		Ops:         ops,
	}
}

func (w *opWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.byOp = make(map[string][]opSample)
}

func summarize(op string, samples []opSample) OpStats {
	st := OpStats{Op: op, Samples: len(samples), Results: make(map[string]int)}
	ms := make([]float64, len(samples))
	for i, s := range samples {
		st.Results[s.result]++
		ms[i] = s.ms
	}
	sort.Float64s(ms)

	// Client mistakes (invalid, not_found, no_slot) are expected outcomes,
	// only "error" counts against the op.
	st.ErrorRate = roundTo(float64(st.Results["error"])/float64(len(samples)), 4)
	st.P50MS = roundTo(nearestRank(ms, 50), 2)
	st.P95MS = roundTo(nearestRank(ms, 95), 2)
	st.MaxMS = roundTo(ms[len(ms)-1], 2)
	st.TargetP95MS = opTargetP95MS(op)
	st.OverTarget = st.TargetP95MS > 0 && st.P95MS > st.TargetP95MS
	return st
}

// nearestRank is the pth percentile of an ascending, non-empty slice.
func nearestRank(sorted []float64, p int) float64 {
	rank := int(math.Ceil(float64(p) / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// opTargetP95MS is the latency budget an op is expected to stay under.
func opTargetP95MS(op string) float64 {
	switch op {
	case "schedule_view", "create", "update", "delete", "clear":
		return 10
	case "auto_plan", "plan_text":
		return 50
	case "analyze_wellness":
		return 5000
	default:
		return 0
	}
}
