package frontend

import (
	"github.com/jo-hoe/mealmacro/internal/analysis"
	"github.com/jo-hoe/mealmacro/internal/intake"
)

// View is what the result panel shows. Exactly one applies at a time.
type View int

const (
	ViewPlaceholder View = iota
	ViewLoading
	ViewError
	ViewResult
)

func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewError:
		return "error"
	case ViewResult:
		return "result"
	default:
		return "placeholder"
	}
}

// PageState holds the three flags the result panel is derived from.
type PageState struct {
	Loading bool
	Err     string
	Result  *analysis.MacroEstimate
}

// SelectionChanged clears the previous outcome. A nil file means the image
// was removed.
func (s *PageState) SelectionChanged(file *intake.File) {
	s.Err = ""
	s.Result = nil
	if file == nil {
		s.Loading = false
	}
}

func (s *PageState) RequestStarted() {
	s.Loading = true
	s.Err = ""
	s.Result = nil
}

func (s *PageState) RequestSucceeded(estimate analysis.MacroEstimate) {
	s.Loading = false
	s.Err = ""
	s.Result = &estimate
}

func (s *PageState) RequestFailed(msg string) {
	s.Loading = false
	s.Result = nil
	s.Err = msg
}

// View evaluates loading, then error, then result.
func (s PageState) View() View {
	switch {
	case s.Loading:
		return ViewLoading
	case s.Err != "":
		return ViewError
	case s.Result != nil:
		return ViewResult
	default:
		return ViewPlaceholder
	}
}
