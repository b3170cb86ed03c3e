package wellness

import (
	"context"
	"fmt"
)

// MockAnalyzer answers locally when no AI endpoint is configured.
type MockAnalyzer struct{}

func NewMockAnalyzer() *MockAnalyzer { return &MockAnalyzer{} }

func (a *MockAnalyzer) Mode() string { return "mock" }

func (a *MockAnalyzer) Analyze(ctx context.Context, entries []Entry) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}
	return Result{Status: StatusMock, Message: buildMockMessage(entries)}, nil
}

func buildMockMessage(entries []Entry) string {
	const prefix = "Wellness coach is in demo mode (no AI endpoint configured).<br><br>"
	switch n := len(entries); {
	case n == 0:
		return prefix + "Tip: Your schedule is open. Block some time for movement and a proper lunch."
	case n > 6:
		return prefix + fmt.Sprintf("Tip: %d tasks is a full day. Protect a few short breaks and remember to drink water.", n)
	default:
		return prefix + "Tip: You have a balanced schedule! Remember to drink water."
	}
}
