package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/antoniostano/aiplanner/internal/config"
	"github.com/antoniostano/aiplanner/internal/planning"
	"github.com/antoniostano/aiplanner/internal/scheduling"
	"github.com/antoniostano/aiplanner/internal/tasks"
	"github.com/antoniostano/aiplanner/internal/wellness"
)

var (
	reportDate     string
	reportWellness bool
	reportJSON     bool
)

var reportCmd = &cobra.Command{
	Use:   "report [file]",
	Short: "Check a plain-text plan for conflicts and missing breaks",
	Long: `Read one task per line from file (or stdin), place each on the calendar
and print conflicts and break recommendations.

Lines may carry a time ("10:30 standup", "3pm review", "下午3點 開會") or a
day part ("gym tonight"). "tomorrow" or "明天" moves the task to the next day.`,
	Args:    cobra.MaximumNArgs(1),
	GroupID: "planning",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}

		text, err := readPlan(cmd, args)
		if err != nil {
			return err
		}

		var reference time.Time
		if reportDate != "" {
			reference, err = time.ParseInLocation("2006-01-02", reportDate, cfg.Location)
			if err != nil {
				return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", reportDate)
			}
		}

		var analyzer wellness.Analyzer
		if reportWellness {
			analyzer = wellness.NewAnalyzer(wellness.Config{
				URL:       cfg.WellnessAIURL,
				APIKey:    cfg.WellnessAIAPIKey,
				Model:     cfg.WellnessAIModel,
				Timeout:   cfg.WellnessAITimeout,
				RedisAddr: cfg.WellnessCacheRedisAddr,
				CacheTTL:  cfg.WellnessCacheTTL,
			}, zap.NewNop())
		}

		rep, err := buildReport(cmd.Context(), cfg, text, reference, analyzer)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if reportJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		renderReport(out, rep, cfg.Location)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportDate, "date", "", "Day the plan is for (YYYY-MM-DD, default today)")
	reportCmd.Flags().BoolVar(&reportWellness, "wellness", false, "Ask the wellness analyzer for tips")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Output in JSON format")
}

func readPlan(cmd *cobra.Command, args []string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to open plan: %w", err)
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read plan: %w", err)
	}
	return string(b), nil
}

type report struct {
	scheduling.View
	Wellness *wellness.Result `json:"wellness,omitempty"`
}

// buildReport plans text on an empty in-memory schedule.
func buildReport(ctx context.Context, cfg config.Config, text string, reference time.Time, analyzer wellness.Analyzer) (report, error) {
	manager := tasks.NewManager()
	defer manager.Close()

	svc, err := scheduling.NewService(manager, analyzer, schedulingOptions(cfg), nil, nil)
	if err != nil {
		return report{}, err
	}
	if _, err := svc.PlanText(ctx, text, reference); err != nil {
		return report{}, err
	}

	rep := report{View: svc.ScheduleView()}
	if analyzer != nil {
		res := svc.AnalyzeWellness(ctx, nil)
		rep.Wellness = &res
	}
	return rep, nil
}

func renderReport(w io.Writer, rep report, loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}

	printSection(w, "Schedule")
	if len(rep.Tasks) == 0 {
		printHint(w, "No tasks found.")
	}
	lastDay := ""
	for _, t := range rep.Tasks {
		start := t.StartTime.In(loc)
		if day := start.Format("Mon 02 Jan"); day != lastDay {
			_, _ = infoColor.Fprintf(w, "  %s\n", day)
			lastDay = day
		}
		_, _ = fmt.Fprintf(w, "    %s-%s  %s\n", start.Format("15:04"), t.EndTime.In(loc).Format("15:04"), t.Name)
	}

	printSection(w, "Conflicts")
	if len(rep.Conflicts) == 0 {
		printSuccess(w, "No overlapping tasks.")
	}
	byID := make(map[string]tasks.Task, len(rep.Tasks))
	for _, t := range rep.Tasks {
		byID[t.ID] = t
	}
	for _, c := range rep.Conflicts {
		printWarning(w, c.Message)
		if hint := rescheduleHint(c, byID, loc); hint != "" {
			printHint(w, hint)
		}
	}

	printSection(w, "Recommendations")
	if len(rep.Breaks) == 0 {
		printSuccess(w, "Schedule is balanced.")
	}
	for _, b := range rep.Breaks {
		printWarning(w, b)
	}

	if rep.Wellness != nil {
		printSection(w, "Wellness")
		msg := strings.NewReplacer("<br>", "\n", "<ul>", "", "</ul>", "", "<li>", "• ", "</li>", "\n").Replace(rep.Wellness.Message)
		for _, line := range strings.Split(msg, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				_, _ = fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}
}

// rescheduleHint suggests starting the later task when the earlier one ends.
func rescheduleHint(c planning.Conflict, byID map[string]tasks.Task, loc *time.Location) string {
	a, okA := byID[c.TaskAID]
	b, okB := byID[c.TaskBID]
	if !okA || !okB {
		return ""
	}
	return fmt.Sprintf("Suggestion: move '%s' to %s, after '%s' ends.", b.Name, a.EndTime.In(loc).Format("15:04"), a.Name)
}
