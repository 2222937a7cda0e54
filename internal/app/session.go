package app

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"edu-quiz-service/internal/domain"
)

// SessionConfig tunes live session timing and scoring.
type SessionConfig struct {
	// DefaultQuestionTime applies to questions without their own time limit.
	DefaultQuestionTime time.Duration
	// ResultsDelay, when positive, moves results to the leaderboard automatically.
	ResultsDelay time.Duration
	// SpeedFloorPercent is the share of a question's points every correct answer earns.
	SpeedFloorPercent int
}

// DefaultSessionConfig is used for zero fields of a SessionConfig.
var DefaultSessionConfig = SessionConfig{
	DefaultQuestionTime: 30 * time.Second,
	SpeedFloorPercent:   50,
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.DefaultQuestionTime <= 0 {
		c.DefaultQuestionTime = DefaultSessionConfig.DefaultQuestionTime
	}
	if c.SpeedFloorPercent <= 0 || c.SpeedFloorPercent > 100 {
		c.SpeedFloorPercent = DefaultSessionConfig.SpeedFloorPercent
	}
	return c
}

// SessionParams describes a new live session.
type SessionParams struct {
	ID       string
	JoinCode string
	Host     domain.Identity
	Schedule domain.ScheduledQuiz
	Quiz     domain.Quiz
	Config   SessionConfig
	Now      func() time.Time
	NewID    func() string
}

// Session is an in-memory multiplayer session. All state changes happen under mu and are
// pushed to subscribers as snapshots.
type Session struct {
	id              string
	joinCode        string
	hostID          string
	scheduledQuizID string
	courseID        string
	schoolID        string
	quiz            domain.Quiz
	cfg             SessionConfig
	now             func() time.Time
	newID           func() string

	mu            sync.Mutex
	status        domain.SessionStatus
	cancelled     bool
	started       bool
	scored        bool // ranks stay 0 until the first answer is graded
	index         int
	questionStart time.Time
	phase         int // bumped on every transition, stale timers compare against it
	timer         *time.Timer
	lastActivity  time.Time
	participants  map[string]*domain.SessionParticipant
	subscribers   map[chan domain.SessionSnapshot]struct{}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(p SessionParams) *Session {
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.NewID == nil {
		p.NewID = uuid.NewString
	}
	if p.ID == "" {
		p.ID = p.NewID()
	}
	if p.Quiz.ShuffleOptions {
		p.Quiz = shuffleQuizOptions(p.Quiz)
	}
	return &Session{
		id:              p.ID,
		joinCode:        p.JoinCode,
		hostID:          p.Host.UserID,
		scheduledQuizID: p.Schedule.ID,
		courseID:        p.Schedule.CourseID,
		schoolID:        p.Schedule.SchoolID,
		quiz:            p.Quiz,
		cfg:             p.Config.withDefaults(),
		now:             p.Now,
		newID:           p.NewID,
		status:          domain.SessionWaiting,
		lastActivity:    p.Now(),
		participants:    make(map[string]*domain.SessionParticipant),
		subscribers:     make(map[chan domain.SessionSnapshot]struct{}),
	}
}

func (s *Session) ID() string       { return s.id }
func (s *Session) JoinCode() string { return s.joinCode }
func (s *Session) HostID() string   { return s.hostID }
func (s *Session) CourseID() string { return s.courseID }
func (s *Session) SchoolID() string { return s.schoolID }

func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastActivity is the time of the last state change.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// join adds a student while the session is waiting. A student already on the roster may rejoin
// in any state until the session completes.
func (s *Session) join(student domain.Identity) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.SessionCompleted {
		return domain.SessionSnapshot{}, domain.ErrSessionNotJoinable
	}
	now := s.now()
	if participant, ok := s.participants[student.UserID]; ok {
		if student.Name != "" {
			participant.StudentName = student.Name
		}
	} else {
		if s.status != domain.SessionWaiting {
			return domain.SessionSnapshot{}, domain.ErrSessionNotJoinable
		}
		s.participants[student.UserID] = &domain.SessionParticipant{
			ID:          s.newID(),
			SessionID:   s.id,
			StudentID:   student.UserID,
			StudentName: student.Name,
			JoinedAt:    now,
		}
	}
	s.lastActivity = now
	s.rankLocked()
	return s.broadcastLocked(), nil
}

func (s *Session) leave(userID string) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.SessionWaiting {
		return domain.SessionSnapshot{}, domain.ErrTransition
	}
	if _, ok := s.participants[userID]; !ok {
		return domain.SessionSnapshot{}, domain.ErrParticipantNotFound
	}
	delete(s.participants, userID)
	s.lastActivity = s.now()
	s.rankLocked()
	return s.broadcastLocked(), nil
}

func (s *Session) start() (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.status == domain.SessionCompleted:
		return domain.SessionSnapshot{}, domain.ErrSessionClosed
	case s.status != domain.SessionWaiting:
		return domain.SessionSnapshot{}, domain.ErrTransition
	case len(s.participants) == 0:
		return domain.SessionSnapshot{}, domain.ErrNoParticipants
	case len(s.quiz.Questions) == 0:
		return domain.SessionSnapshot{}, domain.ErrQuizNotPublishable
	}
	s.status = domain.SessionInProgress
	s.startQuestionLocked(0)
	return s.broadcastLocked(), nil
}

func (s *Session) startQuestionLocked(index int) {
	s.stopTimerLocked()
	s.started = true
	s.index = index
	s.status = domain.SessionQuestion
	s.questionStart = s.now()
	s.lastActivity = s.questionStart
	for _, p := range s.participants {
		p.HasAnswered = false
		p.LastAnswerCorrect = nil
	}

	phase := s.phase
	limit := s.quiz.Questions[index].TimeLimitDuration(s.cfg.DefaultQuestionTime)
	s.timer = time.AfterFunc(limit, func() { s.expireQuestion(phase) })
}

// expireQuestion is the question timer callback.
func (s *Session) expireQuestion(phase int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phase || s.status != domain.SessionQuestion {
		return
	}
	s.toResultsLocked()
	s.broadcastLocked()
}

func (s *Session) submit(studentID string, answer domain.LiveAnswer) (domain.AnswerResult, domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.SessionCompleted {
		return domain.AnswerResult{}, domain.SessionSnapshot{}, domain.ErrSessionClosed
	}
	participant, ok := s.participants[studentID]
	if !ok {
		return domain.AnswerResult{}, domain.SessionSnapshot{}, domain.ErrParticipantNotFound
	}
	if s.status != domain.SessionQuestion {
		return domain.AnswerResult{}, domain.SessionSnapshot{}, domain.ErrQuestionClosed
	}
	question := s.quiz.Questions[s.index]
	if answer.QuestionID != "" && answer.QuestionID != question.ID {
		return domain.AnswerResult{}, domain.SessionSnapshot{}, domain.ErrQuestionClosed
	}
	if participant.HasAnswered {
		return domain.AnswerResult{}, domain.SessionSnapshot{}, domain.ErrAlreadyAnswered
	}
	now := s.now()
	limit := question.TimeLimitDuration(s.cfg.DefaultQuestionTime)
	elapsed := now.Sub(s.questionStart)
	if elapsed >= limit {
		return domain.AnswerResult{}, domain.SessionSnapshot{}, domain.ErrQuestionClosed
	}
	correct, err := gradeAnswer(question, answer.OptionID, answer.Text)
	if err != nil {
		return domain.AnswerResult{}, domain.SessionSnapshot{}, err
	}

	s.scored = true
	awarded := 0
	if correct {
		awarded = SpeedPoints(question.Points, elapsed, limit, s.cfg.SpeedFloorPercent)
		participant.Score += awarded
		participant.CorrectAnswers++
		participant.Streak++
	} else {
		participant.Streak = 0
	}
	participant.HasAnswered = true
	participant.LastAnswerCorrect = &correct
	participant.LastAnsweredAt = &now
	s.lastActivity = now
	s.rankLocked()

	result := domain.AnswerResult{
		QuestionID: question.ID,
		Correct:    correct,
		Awarded:    awarded,
		TotalScore: participant.Score,
		Streak:     participant.Streak,
		Rank:       participant.Rank,
	}
	if s.allAnsweredLocked() {
		s.toResultsLocked()
	}
	return result, s.broadcastLocked(), nil
}

func (s *Session) allAnsweredLocked() bool {
	for _, p := range s.participants {
		if !p.HasAnswered {
			return false
		}
	}
	return true
}

func (s *Session) closeQuestion() (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(domain.SessionQuestion); err != nil {
		return domain.SessionSnapshot{}, err
	}
	s.toResultsLocked()
	return s.broadcastLocked(), nil
}

func (s *Session) toResultsLocked() {
	s.stopTimerLocked()
	s.status = domain.SessionResults
	s.lastActivity = s.now()
	s.rankLocked()
	if s.cfg.ResultsDelay > 0 {
		phase := s.phase
		s.timer = time.AfterFunc(s.cfg.ResultsDelay, func() { s.autoLeaderboard(phase) })
	}
}

func (s *Session) autoLeaderboard(phase int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phase || s.status != domain.SessionResults {
		return
	}
	s.toLeaderboardLocked()
	s.broadcastLocked()
}

func (s *Session) showLeaderboard() (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(domain.SessionResults); err != nil {
		return domain.SessionSnapshot{}, err
	}
	s.toLeaderboardLocked()
	return s.broadcastLocked(), nil
}

func (s *Session) toLeaderboardLocked() {
	s.stopTimerLocked()
	s.status = domain.SessionLeaderboard
	s.lastActivity = s.now()
	s.rankLocked()
}

// next advances to the following question. finished is true when the last question was passed
// and the session completed.
func (s *Session) next() (snapshot domain.SessionSnapshot, finished bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(domain.SessionLeaderboard); err != nil {
		return domain.SessionSnapshot{}, false, err
	}
	if s.index+1 < len(s.quiz.Questions) {
		s.startQuestionLocked(s.index + 1)
		return s.broadcastLocked(), false, nil
	}
	s.completeLocked(false)
	return s.snapshotLocked(), true, nil
}

func (s *Session) cancel() (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == domain.SessionCompleted {
		return domain.SessionSnapshot{}, domain.ErrSessionClosed
	}
	s.completeLocked(true)
	return s.snapshotLocked(), nil
}

// completeLocked publishes the final snapshot and closes every subscription.
func (s *Session) completeLocked(cancelled bool) {
	s.stopTimerLocked()
	s.status = domain.SessionCompleted
	s.cancelled = cancelled
	s.lastActivity = s.now()
	s.rankLocked()
	s.broadcastLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) requireLocked(status domain.SessionStatus) error {
	if s.status == domain.SessionCompleted {
		return domain.ErrSessionClosed
	}
	if s.status != status {
		return domain.ErrTransition
	}
	return nil
}

func (s *Session) stopTimerLocked() {
	s.phase++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) isHost(who domain.Identity) bool {
	return who.UserID == s.hostID || who.Role == domain.RoleSuperAdmin
}

// subscribe returns a channel that receives a snapshot after every change. Completed sessions
// deliver their final snapshot and a closed channel.
func (s *Session) subscribe() (<-chan domain.SessionSnapshot, func()) {
	ch := make(chan domain.SessionSnapshot, 8)

	s.mu.Lock()
	ch <- s.snapshotLocked()
	if s.status == domain.SessionCompleted {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() domain.SessionSnapshot {
	snapshot := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Slow consumer: drop the oldest update.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
	return snapshot
}

// rankLocked orders participants by score desc, then join time, then student id, and stores
// 1-based ranks once any answer has been graded.
func (s *Session) rankLocked() []*domain.SessionParticipant {
	ordered := make([]*domain.SessionParticipant, 0, len(s.participants))
	for _, p := range s.participants {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		if !ordered[i].JoinedAt.Equal(ordered[j].JoinedAt) {
			return ordered[i].JoinedAt.Before(ordered[j].JoinedAt)
		}
		return ordered[i].StudentID < ordered[j].StudentID
	})
	for i, p := range ordered {
		p.Rank = 0
		if s.scored {
			p.Rank = i + 1
		}
	}
	return ordered
}

// shuffleQuizOptions returns a copy of quiz with every question's options in random order.
func shuffleQuizOptions(quiz domain.Quiz) domain.Quiz {
	questions := make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		options := append([]domain.Option(nil), q.Options...)
		rand.Shuffle(len(options), func(a, b int) { options[a], options[b] = options[b], options[a] })
		q.Options = options
		questions[i] = q
	}
	quiz.Questions = questions
	return quiz
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	ordered := s.rankLocked()
	participants := make([]domain.SessionParticipant, 0, len(ordered))
	for _, p := range ordered {
		participants = append(participants, *p)
	}

	snapshot := domain.SessionSnapshot{
		ID:                   s.id,
		ScheduledQuizID:      s.scheduledQuizID,
		QuizID:               s.quiz.ID,
		JoinCode:             s.joinCode,
		HostID:               s.hostID,
		Status:               s.status,
		Cancelled:            s.cancelled,
		CurrentQuestionIndex: s.index,
		QuestionCount:        len(s.quiz.Questions),
		Participants:         participants,
		UpdatedAt:            s.lastActivity,
	}
	if s.started {
		start := s.questionStart
		snapshot.QuestionStartTime = &start
		snapshot.Question = s.liveQuestionLocked()
	}
	return snapshot
}

// liveQuestionLocked hides correctness while the question is open.
func (s *Session) liveQuestionLocked() *domain.LiveQuestion {
	question := s.quiz.Questions[s.index]
	revealed := s.status != domain.SessionQuestion
	options := make([]domain.Option, len(question.Options))
	for i, opt := range question.Options {
		if !revealed {
			opt.Correct = false
		}
		options[i] = opt
	}
	live := &domain.LiveQuestion{
		ID:        question.ID,
		Index:     s.index,
		Type:      question.Type,
		Prompt:    question.Prompt,
		Options:   options,
		Points:    question.Points,
		TimeLimit: int(question.TimeLimitDuration(s.cfg.DefaultQuestionTime) / time.Second),
		Revealed:  revealed,
	}
	if revealed {
		live.Answer = correctAnswerText(question)
	}
	return live
}
