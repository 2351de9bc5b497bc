package frontend

import (
	"testing"

	"github.com/jo-hoe/mealmacro/internal/analysis"
	"github.com/jo-hoe/mealmacro/internal/intake"
)

func TestPageState_View(t *testing.T) {
	result := &analysis.MacroEstimate{Name: "Jabłko", Calories: 95}

	tests := []struct {
		name  string
		state PageState
		want  View
	}{
		{"empty", PageState{}, ViewPlaceholder},
		{"loading wins over everything", PageState{Loading: true, Err: "x", Result: result}, ViewLoading},
		{"error wins over result", PageState{Err: "x", Result: result}, ViewError},
		{"result", PageState{Result: result}, ViewResult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.View(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestPageState_Transitions(t *testing.T) {
	var s PageState
	file := &intake.File{Name: "a.jpg", Type: "image/jpeg"}

	s.SelectionChanged(file)
	s.RequestStarted()
	if s.View() != ViewLoading {
		t.Fatalf("expected loading, got %s", s.View())
	}

	s.RequestSucceeded(analysis.MacroEstimate{Name: "Jabłko", Calories: 95})
	if s.View() != ViewResult || s.Result.Calories != 95 {
		t.Fatalf("expected result, got %s", s.View())
	}

	s.SelectionChanged(file)
	s.RequestStarted()
	s.RequestFailed("analysis failed")
	if s.View() != ViewError || s.Result != nil {
		t.Fatalf("expected error without stale result, got %s", s.View())
	}

	s.SelectionChanged(nil)
	if s.View() != ViewPlaceholder {
		t.Fatalf("expected placeholder after removal, got %s", s.View())
	}
}
