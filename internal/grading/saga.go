package grading

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// Unit is a gradable sub-unit at a fixed position (task 1, task 2, ...).
type Unit struct {
	Index   int
	Request GradeRequest
}

// ResultFunc is called for each graded unit before it is recorded. An
// error leaves the unit ungraded so a later Run retries it.
type ResultFunc func(ctx context.Context, index int, result models.SubGradingResult) error

type RunOptions struct {
	Concurrency int
	OnResult    ResultFunc
}

// Saga tracks expected against received sub-results and aggregates only
// once every unit is in.
type Saga struct {
	ID       string
	Skill    models.SkillType
	expected int

	mu      sync.Mutex
	results map[int]models.SubGradingResult
	logger  *slog.Logger
}

func NewSaga(skill models.SkillType, expected int, logger *slog.Logger) *Saga {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Saga{
		ID:       id,
		Skill:    skill,
		expected: expected,
		results:  make(map[int]models.SubGradingResult, expected),
		logger:   logger.With("saga_id", id, "skill", skill),
	}
}

// Record stores the result for a unit. Recording the same index again
// replaces the earlier result.
func (s *Saga) Record(index int, result models.SubGradingResult) error {
	if index < 0 || index >= s.expected {
		return fmt.Errorf("unit index %d outside 0..%d", index, s.expected-1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[index] = result
	return nil
}

func (s *Saga) Expected() int { return s.expected }

func (s *Saga) Received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func (s *Saga) Complete() bool {
	return s.expected > 0 && s.Received() == s.expected
}

// Missing lists the unit indexes with no result yet.
func (s *Saga) Missing() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for i := 0; i < s.expected; i++ {
		if _, ok := s.results[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// Results returns the recorded results in unit order.
func (s *Saga) Results() []models.SubGradingResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := make([]int, 0, len(s.results))
	for i := range s.results {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]models.SubGradingResult, len(idx))
	for i, k := range idx {
		out[i] = s.results[k]
	}
	return out
}

// Aggregate fails with ErrGradingIncomplete until every unit is recorded.
func (s *Saga) Aggregate() (*models.AggregatedResult, error) {
	if s.expected == 0 {
		return nil, fmt.Errorf("%w: skill %s", ErrNoSubResults, s.Skill)
	}
	if got := s.Received(); got != s.expected {
		return nil, fmt.Errorf("%w: received %d of %d sub-results", ErrGradingIncomplete, got, s.expected)
	}
	return Aggregate(s.Skill, s.Results())
}

// Run grades every unit that has no result yet, concurrently, then
// aggregates. Results gathered before a failure stay in the saga.
func (s *Saga) Run(ctx context.Context, grader Grader, units []Unit, opts RunOptions) (*models.AggregatedResult, error) {
	if len(units) != s.expected {
		return nil, fmt.Errorf("saga expects %d units, got %d", s.expected, len(units))
	}

	missing := make(map[int]bool)
	for _, i := range s.Missing() {
		missing[i] = true
	}

	var g errgroup.Group
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	for _, unit := range units {
		if !missing[unit.Index] {
			continue
		}
		g.Go(func() error {
			res, err := grader.Grade(ctx, unit.Request)
			if err != nil {
				s.logger.Warn("Grading unit failed", "unit", unit.Index, "question_id", unit.Request.QuestionID, "error", err)
				return fmt.Errorf("grade unit %d: %w", unit.Index, err)
			}
			if res.QuestionID == 0 {
				res.QuestionID = unit.Request.QuestionID
			}
			if opts.OnResult != nil {
				if err := opts.OnResult(ctx, unit.Index, *res); err != nil {
					return fmt.Errorf("store unit %d: %w", unit.Index, err)
				}
			}
			s.logger.Debug("Grading unit done", "unit", unit.Index, "band", res.OverallBand)
			return s.Record(unit.Index, *res)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGradingIncomplete, err)
	}
	return s.Aggregate()
}
