package wellness

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the coaching prompt for entries.
func BuildPrompt(entries []Entry) string {
	var b strings.Builder
	b.WriteString("You are a supportive wellness coach. Analyze this schedule and provide 3 specific, actionable wellness tips.\n")
	b.WriteString("Focus on energy management, breaks, and mindset. Keep it brief (max 50 words per tip).\n\n")
	b.WriteString("Schedule:\n")
	if len(entries) == 0 {
		b.WriteString("- (nothing scheduled)\n")
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s (%s to %s)\n", strings.TrimSpace(e.Name), e.StartTime, e.EndTime)
	}
	b.WriteString("\nFormat output as HTML bullet points.")
	return b.String()
}
