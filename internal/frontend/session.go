package frontend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/mealmacro/internal/analysis"
	"github.com/jo-hoe/mealmacro/internal/intake"
)

const SessionCookieName = "mealmacro_session"

// Estimator produces a macro estimate for an encoded image.
type Estimator interface {
	Estimate(ctx context.Context, payload string, timeout time.Duration) (analysis.MacroEstimate, error)
}

// IntakeFactory creates the intake of a new session.
type IntakeFactory func(onFileChange func(*intake.File)) *intake.Intake

// Session is the page state of one browser.
type Session struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	intake    *intake.Intake
	estimator Estimator

	mu       sync.Mutex
	state    PageState
	seq      uint64
	lastSeen time.Time
	analyses sync.WaitGroup
}

func newSession(id string, newIntake IntakeFactory, estimator Estimator, now time.Time) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		ctx:       ctx,
		cancel:    cancel,
		estimator: estimator,
		lastSeen:  now,
	}
	s.intake = newIntake(s.onFileChange)
	return s
}

func (s *Session) ID() string { return s.id }

// Select hands file to the intake. Compression and analysis continue in the
// background.
func (s *Session) Select(file intake.File) (*intake.Task, error) {
	return s.intake.Select(s.ctx, file)
}

func (s *Session) Remove() error {
	return s.intake.Remove(s.ctx)
}

// onFileChange receives the compressed file, or nil on removal, and starts
// the analysis. Results of an older selection are discarded.
func (s *Session) onFileChange(file *intake.File) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.state.SelectionChanged(file)
	if file == nil {
		s.mu.Unlock()
		return
	}
	s.state.RequestStarted()
	s.mu.Unlock()

	payload := file.DataURL()
	s.analyses.Add(1)
	go s.analyze(seq, payload)
}

func (s *Session) analyze(seq uint64, payload string) {
	defer s.analyses.Done()

	estimate, err := s.estimator.Estimate(s.ctx, payload, 0)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		slog.Debug("Session: dropping outdated analysis", "session", s.id, "seq", seq)
		return
	}
	if err != nil {
		s.state.RequestFailed(errorMessage(err))
		return
	}
	s.state.RequestSucceeded(estimate)
}

// Panel is the data the result panel and the intake area are rendered from.
type Panel struct {
	PreviewID  string
	Processing bool
	View       View
	Err        string
	Result     *analysis.MacroEstimate
	Notice     string
}

// Poll reports whether the browser should ask again for the panel.
func (p Panel) Poll() bool {
	return p.Processing || p.View == ViewLoading
}

func (s *Session) Panel() Panel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Panel{
		PreviewID:  s.intake.PreviewID(),
		Processing: s.intake.Processing(),
		View:       s.state.View(),
		Err:        s.state.Err,
		Result:     s.state.Result,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Close abandons running work and releases the preview.
func (s *Session) Close() {
	s.cancel()
	s.intake.Close(context.Background())
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, analysis.ErrMissingCredential):
		return "missing credential"
	case errors.Is(err, analysis.ErrNoImage):
		return "no image supplied"
	default:
		return "analysis failed"
	}
}

// SessionManager maps the session cookie to a Session and tears down
// sessions idle for longer than ttl.
type SessionManager struct {
	newIntake IntakeFactory
	estimator Estimator
	ttl       time.Duration
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager(newIntake IntakeFactory, estimator Estimator, ttl time.Duration) *SessionManager {
	return &SessionManager{
		newIntake: newIntake,
		estimator: estimator,
		ttl:       ttl,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Get returns the session of the request, creating one and setting the
// cookie when none exists.
func (m *SessionManager) Get(ctx echo.Context) *Session {
	now := m.now()
	if cookie, err := ctx.Cookie(SessionCookieName); err == nil {
		m.mu.Lock()
		s, ok := m.sessions[cookie.Value]
		m.mu.Unlock()
		if ok {
			s.touch(now)
			return s
		}
	}

	s := newSession(uuid.NewString(), m.newIntake, m.estimator, now)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	ctx.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    s.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	slog.Debug("SessionManager: created session", "session", s.id)
	return s
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps idle sessions until ctx is done.
func (m *SessionManager) Run(ctx context.Context) {
	interval := m.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(m.now())
		}
	}
}

func (m *SessionManager) sweep(now time.Time) int {
	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.idleSince(now) > m.ttl {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 {
		slog.Info("SessionManager: released idle sessions", "count", len(idle))
	}
	return len(idle)
}

// Close tears down every session.
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
