package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/repository"
)

// ─── Quiz store ────────────────────────────────────────────────────────────

type memQuizStore struct {
	mu        sync.Mutex
	quizzes   map[string]*model.Quiz
	malformed map[string]bool
	// badSettings marks quizzes whose settings columns fail to decode.
	badSettings map[string]bool
	mappings    []model.QuizBucketMapping
}

func newMemQuizStore(quizzes ...model.Quiz) *memQuizStore {
	s := &memQuizStore{
		quizzes:     make(map[string]*model.Quiz),
		malformed:   make(map[string]bool),
		badSettings: make(map[string]bool),
	}
	for i := range quizzes {
		q := quizzes[i]
		s.quizzes[q.ID] = &q
	}
	return s
}

func (s *memQuizStore) GetQuiz(_ context.Context, id string) (*model.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *q
	out.Questions = append([]model.Question(nil), q.Questions...)
	if s.malformed[id] {
		out.Questions = nil
		return &out, repository.ErrMalformedStoredData
	}
	if s.badSettings[id] {
		out.Randomization = nil
		out.Proctoring = nil
		return &out, &repository.MalformedQuizError{QuizID: id, Columns: []string{"proctoring_settings"}}
	}
	return &out, nil
}

func (s *memQuizStore) ListSummaries(_ context.Context) ([]model.QuizSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.QuizSummary
	for _, q := range s.quizzes {
		out = append(out, model.QuizSummary{ID: q.ID, Name: q.Name, QuestionCount: len(q.Questions), IsCustom: q.IsCustom})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memQuizStore) CreateQuiz(_ context.Context, q *model.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quizzes[q.ID]; ok {
		return repository.ErrDuplicate
	}
	cp := *q
	s.quizzes[q.ID] = &cp
	return nil
}

func (s *memQuizStore) CreateComposedQuiz(ctx context.Context, q *model.Quiz, m *model.QuizBucketMapping) error {
	if err := s.CreateQuiz(ctx, q); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.QuizID = q.ID
	m.ID = len(s.mappings) + 1
	s.mappings = append(s.mappings, *m)
	return nil
}

func (s *memQuizStore) UpdateQuiz(_ context.Context, id string, p model.QuizPatch) (*model.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Name != nil {
		q.Name = *p.Name
	}
	if p.Description != nil {
		q.Description = *p.Description
	}
	if p.Questions != nil {
		q.Questions = p.Questions
		delete(s.malformed, id)
	}
	if p.PointsPerQuestion != nil {
		q.PointsPerQuestion = *p.PointsPerQuestion
	}
	if p.TimeLimitMinutes != nil {
		q.TimeLimitMinutes = *p.TimeLimitMinutes
	}
	if p.Randomization != nil {
		q.Randomization = p.Randomization
	}
	if p.Proctoring != nil {
		q.Proctoring = p.Proctoring
	}
	out := *q
	return &out, nil
}

func (s *memQuizStore) DeleteQuiz(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !q.IsCustom {
		return repository.ErrProtected
	}
	delete(s.quizzes, id)
	return nil
}

func (s *memQuizStore) ListBucketMappings(_ context.Context, quizID string) ([]model.QuizBucketMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.QuizBucketMapping
	for _, m := range s.mappings {
		if m.QuizID == quizID {
			out = append(out, m)
		}
	}
	return out, nil
}

// ─── Bucket store ──────────────────────────────────────────────────────────

type memBucketStore struct {
	mu        sync.Mutex
	nextID    int
	buckets   map[int]*model.Bucket
	questions map[int][]model.BucketQuestion
}

func newMemBucketStore() *memBucketStore {
	return &memBucketStore{buckets: make(map[int]*model.Bucket), questions: make(map[int][]model.BucketQuestion)}
}

func (s *memBucketStore) List(_ context.Context) ([]model.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Bucket
	for _, b := range s.buckets {
		out = append(out, *b)
	}
	return out, nil
}

func (s *memBucketStore) Get(_ context.Context, id int) (*model.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *b
	return &out, nil
}

func (s *memBucketStore) Create(_ context.Context, b *model.Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	b.ID = s.nextID
	cp := *b
	s.buckets[b.ID] = &cp
	return nil
}

func (s *memBucketStore) Update(_ context.Context, b *model.Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.buckets[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Name, cur.Subject, cur.Description = b.Name, b.Subject, b.Description
	return nil
}

func (s *memBucketStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.buckets, id)
	delete(s.questions, id)
	return nil
}

func (s *memBucketStore) ListQuestions(_ context.Context, bucketID int, f model.BucketQuestionFilter) ([]model.BucketQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BucketQuestion
	for _, q := range s.questions[bucketID] {
		if f.ActiveOnly && !q.IsActive {
			continue
		}
		if f.Difficulty != nil && q.Difficulty != *f.Difficulty {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *memBucketStore) AddQuestions(_ context.Context, bucketID int, qs []model.BucketQuestion) (*model.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucketID]; !ok {
		return nil, repository.ErrNotFound
	}
	for i := range qs {
		s.nextID++
		qs[i].ID = s.nextID
		qs[i].BucketID = bucketID
		qs[i].IsActive = true
		s.questions[bucketID] = append(s.questions[bucketID], qs[i])
	}
	return s.recount(bucketID), nil
}

func (s *memBucketStore) UpdateQuestion(_ context.Context, q *model.BucketQuestion) (*model.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.questions[q.BucketID] {
		if cur.ID == q.ID {
			q.IsActive = cur.IsActive
			s.questions[q.BucketID][i] = *q
			return s.recount(q.BucketID), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memBucketStore) DeactivateQuestion(_ context.Context, bucketID, questionID int) (*model.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.questions[bucketID] {
		if cur.ID == questionID {
			s.questions[bucketID][i].IsActive = false
			return s.recount(bucketID), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memBucketStore) recount(bucketID int) *model.Bucket {
	b := s.buckets[bucketID]
	b.EasyCount, b.MediumCount, b.HardCount = 0, 0, 0
	for _, q := range s.questions[bucketID] {
		if !q.IsActive {
			continue
		}
		switch q.Difficulty {
		case model.DifficultyEasy:
			b.EasyCount++
		case model.DifficultyMedium:
			b.MediumCount++
		case model.DifficultyHard:
			b.HardCount++
		}
	}
	b.TotalQuestions = b.EasyCount + b.MediumCount + b.HardCount
	out := *b
	return &out
}

// ─── Proctoring store ──────────────────────────────────────────────────────

type memProctoringStore struct {
	mu         sync.Mutex
	now        func() time.Time
	sessions   map[string]*model.ProctoringSession
	violations map[string][]model.Violation
	nextID     int64
	getCalls   int
	failAppend error
}

func newMemProctoringStore() *memProctoringStore {
	return &memProctoringStore{
		now:        time.Now,
		sessions:   make(map[string]*model.ProctoringSession),
		violations: make(map[string][]model.Violation),
	}
}

func (s *memProctoringStore) CreateSession(_ context.Context, sess *model.ProctoringSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.SessionID]; ok {
		return repository.ErrDuplicate
	}
	sess.StartTime = s.now()
	sess.ViolationCount = 0
	cp := *sess
	s.sessions[sess.SessionID] = &cp
	return nil
}

func (s *memProctoringStore) GetSession(_ context.Context, id string) (*model.ProctoringSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	sess, ok := s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *sess
	return &out, nil
}

func (s *memProctoringStore) CloseSession(_ context.Context, id string, status model.SessionStatus, reason string) (*model.ProctoringSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	if sess.Status.Terminal() {
		out := *sess
		return &out, false, nil
	}
	now := s.now()
	sess.Status, sess.EndTime, sess.EndReason = status, &now, reason
	out := *sess
	return &out, true, nil
}

func (s *memProctoringStore) AppendViolation(_ context.Context, v *model.Violation, threshold int, endReason string) (*model.ProctoringSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend != nil {
		return nil, s.failAppend
	}
	sess, ok := s.sessions[v.SessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if sess.Status != model.SessionStatusActive {
		return nil, repository.ErrNotActive
	}

	sess.ViolationCount++
	if sess.StrictMode && sess.ViolationCount >= threshold {
		now := s.now()
		sess.Status, sess.EndTime, sess.EndReason = model.SessionStatusTerminated, &now, endReason
	}
	s.nextID++
	v.ID = s.nextID
	v.Timestamp = s.now()
	s.violations[v.SessionID] = append(s.violations[v.SessionID], *v)

	out := *sess
	return &out, nil
}

func (s *memProctoringStore) ListViolations(_ context.Context, id string) ([]model.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Violation(nil), s.violations[id]...), nil
}

func (s *memProctoringStore) ListSessions(_ context.Context, f model.SessionFilter) ([]model.ProctoringSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ProctoringSession
	for _, sess := range s.sessions {
		if f.Status != "" && sess.Status != f.Status {
			continue
		}
		if f.AssessmentID != "" && sess.AssessmentID != f.AssessmentID {
			continue
		}
		if f.UserEmail != "" && sess.UserEmail != f.UserEmail {
			continue
		}
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memProctoringStore) AggregateStatistics(_ context.Context, since *time.Time) (*model.SessionCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &model.SessionCounts{
		ByStatus:   make(map[model.SessionStatus]int),
		ByType:     make(map[model.ViolationType]int),
		BySeverity: make(map[model.Severity]int),
	}
	users := make(map[string]bool)
	total, n := 0, 0
	for _, sess := range s.sessions {
		if since != nil && sess.StartTime.Before(*since) {
			continue
		}
		c.ByStatus[sess.Status]++
		users[sess.UserEmail] = true
		total += sess.ViolationCount
		n++
	}
	for _, vs := range s.violations {
		for _, v := range vs {
			if since != nil && v.Timestamp.Before(*since) {
				continue
			}
			c.ByType[v.Type]++
			c.BySeverity[v.Severity]++
			if v.AutoFlagged {
				c.AutoFlagged++
			}
		}
	}
	c.UniqueUsers = len(users)
	if n > 0 {
		c.AvgViolation = float64(total) / float64(n)
	}
	return c, nil
}

// ─── Result store, queue and publisher ─────────────────────────────────────

type memResultStore struct {
	mu      sync.Mutex
	results []model.QuizResult
}

func (s *memResultStore) Insert(_ context.Context, r *model.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = int64(len(s.results) + 1)
	s.results = append(s.results, *r)
	return nil
}

func (s *memResultStore) ListPaginated(_ context.Context, quizID string, limit, offset int) ([]model.QuizResult, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var match []model.QuizResult
	for _, r := range s.results {
		if quizID == "" || r.QuizID == quizID {
			match = append(match, r)
		}
	}
	total := len(match)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return match[offset:end], total, nil
}

type memQueue struct {
	mu    sync.Mutex
	items []model.QuizResult
	err   error
}

func (q *memQueue) Enqueue(_ context.Context, r *model.QuizResult) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, *r)
	return nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []model.MonitorEvent
}

func (p *memPublisher) Publish(_ context.Context, _ string, ev model.MonitorEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *memPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// failingCache errors on every call.
type failingCache struct{}

var errCacheDown = errors.New("cache down")

func (failingCache) Get(context.Context, string) (*model.ProctoringSession, error) {
	return nil, errCacheDown
}
func (failingCache) Put(context.Context, *model.ProctoringSession) error { return errCacheDown }
func (failingCache) Delete(context.Context, string) error                { return errCacheDown }
