package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/antoniostano/aiplanner/internal/observability"
	"github.com/antoniostano/aiplanner/internal/planning"
	"github.com/antoniostano/aiplanner/internal/tasks"
	"github.com/antoniostano/aiplanner/internal/wellness"
)

// View is one consistent picture of the schedule.
type View struct {
	Tasks     []tasks.Task        `json:"tasks"`
	Conflicts []planning.Conflict `json:"conflicts"`
	Breaks    []string            `json:"breaks"`
}

type AutoPlanResult struct {
	Task    tasks.Task `json:"task"`
	Message string     `json:"message"`
}

type Options struct {
	Slots    planning.SlotOptions
	Advisor  planning.AdvisorOptions
	Location *time.Location
	// Now is the clock; tests replace it.
	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Slots:    planning.DefaultSlotOptions(),
		Advisor:  planning.DefaultAdvisorOptions(),
		Location: time.Local,
		Now:      time.Now,
	}
}

// Service runs every scheduling operation against one task manager.
type Service struct {
	store    *tasks.Manager
	analyzer wellness.Analyzer
	advisor  *planning.Advisor
	opts     Options
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func NewService(store *tasks.Manager, analyzer wellness.Analyzer, opts Options, metrics *observability.Metrics, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("task manager is required")
	}
	if err := opts.Slots.Validate(); err != nil {
		return nil, fmt.Errorf("slot options: %w", err)
	}
	if err := opts.Advisor.Validate(); err != nil {
		return nil, fmt.Errorf("advisor options: %w", err)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if analyzer == nil {
		analyzer = wellness.NewMockAnalyzer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		analyzer: analyzer,
		advisor:  planning.NewAdvisor(opts.Advisor),
		opts:     opts,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

func (s *Service) Location() *time.Location { return s.opts.Location }

func (s *Service) AnalyzerMode() string { return s.analyzer.Mode() }

// Changes subscribes to committed task mutations.
func (s *Service) Changes() (<-chan tasks.Event, func()) {
	return s.store.Subscribe()
}

// AutoPlan places a task of durationMinutes at the earliest free slot from now
// and commits it before any other mutation can interleave.
func (s *Service) AutoPlan(ctx context.Context, name string, durationMinutes int) (AutoPlanResult, error) {
	started := time.Now()
	res, err := s.autoPlan(ctx, name, durationMinutes)
	s.metrics.ObserveOp("auto_plan", resultLabel(err), time.Since(started))
	if err != nil {
		s.logger.Info("auto-plan rejected",
			zap.String("name", name),
			zap.Int("duration_minutes", durationMinutes),
			zap.Error(err),
		)
		return AutoPlanResult{}, err
	}
	s.logger.Info("auto-planned task",
		zap.String("task_id", res.Task.ID),
		zap.Time("start", res.Task.StartTime),
		zap.Int("duration_minutes", durationMinutes),
	)
	return res, nil
}

func (s *Service) autoPlan(ctx context.Context, name string, durationMinutes int) (AutoPlanResult, error) {
	if err := ctx.Err(); err != nil {
		return AutoPlanResult{}, err
	}
	if strings.TrimSpace(name) == "" {
		return AutoPlanResult{}, &tasks.ValidationError{Field: "name", Reason: "is required"}
	}
	earliest := planning.CeilTo(s.opts.Now().In(s.opts.Location), s.opts.Slots.Granularity)

	task, err := s.store.Reserve(func(snapshot []tasks.Task) (tasks.Proposal, error) {
		iv, err := planning.FindSlot(snapshot, durationMinutes, earliest, s.opts.Slots)
		if err != nil {
			return tasks.Proposal{}, err
		}
		candidate := tasks.Task{Name: name, StartTime: iv.Start, EndTime: iv.End}
		for _, c := range planning.DetectConflicts(append(snapshot, candidate)) {
			if c.TaskAID == "" || c.TaskBID == "" {
				return tasks.Proposal{}, fmt.Errorf("slot %s overlaps a scheduled task: %s", iv.Start.Format(time.RFC3339), c.Message)
			}
		}
		return tasks.Proposal{Name: name, Start: iv.Start, End: iv.End}, nil
	})
	if err != nil {
		return AutoPlanResult{}, err
	}
	return AutoPlanResult{
		Task:    task,
		Message: fmt.Sprintf("Automatically scheduled '%s' at %s", task.Name, task.StartTime.Format("15:04")),
	}, nil
}

func (s *Service) CreateTask(name string, start, end time.Time) (tasks.Task, error) {
	started := time.Now()
	task, err := s.store.Add(name, start, end)
	s.metrics.ObserveOp("create", resultLabel(err), time.Since(started))
	return task, err
}

func (s *Service) UpdateTask(id, name string, start, end time.Time) (tasks.Task, error) {
	started := time.Now()
	task, err := s.store.Update(id, name, start, end)
	s.metrics.ObserveOp("update", resultLabel(err), time.Since(started))
	return task, err
}

func (s *Service) DeleteTask(id string) error {
	started := time.Now()
	err := s.store.Remove(id)
	s.metrics.ObserveOp("delete", resultLabel(err), time.Since(started))
	return err
}

func (s *Service) ClearAll() {
	started := time.Now()
	s.store.Clear()
	s.metrics.ObserveOp("clear", "ok", time.Since(started))
	s.logger.Info("cleared all tasks")
}

// ScheduleView computes conflicts and advisories over a single snapshot.
func (s *Service) ScheduleView() View {
	started := time.Now()
	snapshot := s.store.List()
	view := View{
		Tasks:     snapshot,
		Conflicts: planning.DetectConflicts(snapshot),
		Breaks:    s.advisor.Advise(snapshot),
	}
	s.metrics.SetSchedule(len(view.Tasks), len(view.Conflicts))
	s.metrics.ObserveOp("schedule_view", "ok", time.Since(started))
	return view
}

// PlanText adds one task per line of text. A zero reference means today in
// the planner's location.
func (s *Service) PlanText(ctx context.Context, text string, reference time.Time) ([]tasks.Task, error) {
	started := time.Now()
	added, err := s.planText(ctx, text, reference)
	s.metrics.ObserveOp("plan_text", resultLabel(err), time.Since(started))
	if err == nil {
		s.logger.Info("planned tasks from text", zap.Int("added", len(added)))
	}
	return added, err
}

func (s *Service) planText(ctx context.Context, text string, reference time.Time) ([]tasks.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reference.IsZero() {
		reference = s.opts.Now().In(s.opts.Location)
	}
	proposals, err := planning.ParseText(text, reference)
	if err != nil {
		return nil, err
	}
	if len(proposals) == 0 {
		return []tasks.Task{}, nil
	}
	return s.store.AddAll(proposals)
}

// AnalyzeWellness forwards a schedule to the wellness analyzer. An empty
// entries list analyzes the current schedule. Analyzer failures are reported
// in the result, never as an error.
func (s *Service) AnalyzeWellness(ctx context.Context, entries []wellness.Entry) wellness.Result {
	started := time.Now()
	if len(entries) == 0 {
		entries = s.currentEntries()
	}

	res, err := s.analyzer.Analyze(ctx, entries)
	if err != nil {
		s.logger.Warn("wellness analysis failed", zap.String("mode", s.analyzer.Mode()), zap.Error(err))
		res = wellness.Result{Status: wellness.StatusError, Message: err.Error()}
	}
	s.metrics.ObserveWellness(res.Status)
	s.metrics.ObserveOp("analyze_wellness", res.Status, time.Since(started))
	return res
}

func (s *Service) currentEntries() []wellness.Entry {
	snapshot := s.store.List()
	out := make([]wellness.Entry, 0, len(snapshot))
	for _, t := range snapshot {
		out = append(out, wellness.Entry{
			Name:      t.Name,
			StartTime: t.StartTime.In(s.opts.Location).Format(time.RFC3339),
			EndTime:   t.EndTime.In(s.opts.Location).Format(time.RFC3339),
		})
	}
	return out
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, tasks.ErrInvalidTask):
		return "invalid"
	case errors.Is(err, tasks.ErrTaskNotFound):
		return "not_found"
	case errors.Is(err, planning.ErrNoSlotAvailable):
		return "no_slot"
	default:
		return "error"
	}
}
