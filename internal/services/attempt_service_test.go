package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-engine/internal/cache"
	"github.com/SAP-F-2025/exam-engine/internal/content"
	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/session"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

type attemptFixture struct {
	cache     cache.CacheService
	store     SkillStore
	repo      *MockSubmissionRepository
	publisher *events.MockEventPublisher
	opts      content.BuildOptions
	config    AttemptConfig
}

func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()
	c := newTestCache(t)
	store := NewCacheSkillStore(c)
	require.NoError(t, store.Save(context.Background(), readingSkill()))
	return &attemptFixture{
		cache:     c,
		store:     store,
		repo:      new(MockSubmissionRepository),
		publisher: events.NewMockEventPublisher(nil),
		config:    AttemptConfig{SnapshotTTL: time.Hour},
	}
}

func (f *attemptFixture) service(t *testing.T) AttemptService {
	t.Helper()
	v := validator.New()
	contentSvc := NewContentService(f.store, f.publisher, v, f.opts, testLogger("content"))
	submissions := NewSubmissionService(f.repo, f.store, v, f.opts, testLogger("submission"))
	svc := NewAttemptService(contentSvc, submissions, f.cache, f.publisher, v, f.config, testLogger("attempt"))
	t.Cleanup(svc.Shutdown)
	return svc
}

func answer(questionID uint, value string) *AnswerRequest {
	return &AnswerRequest{QuestionID: questionID, AnswerText: &value}
}

func TestAttemptService_StartAndAnswer(t *testing.T) {
	f := newAttemptFixture(t)
	svc := f.service(t)
	ctx := context.Background()

	view, err := svc.Start(ctx, &StartAttemptRequest{SkillID: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, view.AttemptID)
	assert.Equal(t, session.StateInProgress, view.State)
	assert.Equal(t, 3600, view.Duration)
	require.NotNil(t, view.Plan)
	assert.Len(t, view.Plan.Groups, 2)

	started := f.publisher.EventsOfType(events.EventAttemptStarted)
	require.Len(t, started, 1)
	assert.Equal(t, 4, started[0].Data.(events.AttemptStartedEvent).QuestionCount)

	ack, err := svc.SetAnswer(ctx, view.AttemptID, answer(1, "True"))
	require.NoError(t, err)
	assert.Equal(t, models.AnswerAnswered, ack.Status)
	assert.Equal(t, uint64(1), ack.Revision)

	_, err = svc.SetAnswer(ctx, view.AttemptID, answer(1, "Maybe"))
	assert.ErrorIs(t, err, ErrAnswerNotAllowed)

	_, err = svc.SetAnswer(ctx, view.AttemptID, answer(2, ""))
	assert.ErrorIs(t, err, ErrAnswerNotAllowed)

	_, err = svc.SetAnswer(ctx, view.AttemptID, answer(99, "True"))
	assert.ErrorIs(t, err, ErrUnknownQuestion)

	// Free-text answers may be cleared.
	_, err = svc.SetAnswer(ctx, view.AttemptID, answer(3, ""))
	require.NoError(t, err)

	got, err := svc.Get(ctx, view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AnsweredCount)
	assert.Equal(t, map[uint]string{1: "True", 3: ""}, got.Answers)
	assert.Nil(t, got.Plan)
}

func TestAttemptService_InlineAnswersAreTruncated(t *testing.T) {
	f := newAttemptFixture(t)
	svc := f.service(t)
	ctx := context.Background()

	view, err := svc.Start(ctx, &StartAttemptRequest{SkillID: 10})
	require.NoError(t, err)

	long := "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyzabcdefghij"
	ack, err := svc.SetAnswer(ctx, view.AttemptID, answer(3, long))
	require.NoError(t, err)
	assert.Len(t, []rune(ack.Value), 50)
}

func TestAttemptService_SnapshotAndResume(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	first := f.service(t)
	view, err := first.Start(ctx, &StartAttemptRequest{SkillID: 10})
	require.NoError(t, err)
	_, err = first.SetAnswer(ctx, view.AttemptID, answer(2, "False"))
	require.NoError(t, err)
	_, err = first.SetAnswer(ctx, view.AttemptID, answer(4, "1890"))
	require.NoError(t, err)

	var snap attemptSnapshot
	require.NoError(t, f.cache.Get(ctx, cache.AnswerSnapshotKey(view.AttemptID), &snap))
	assert.Equal(t, uint(10), snap.SkillID)
	assert.Len(t, snap.Answers, 2)

	// A restarted server has no live session, only the snapshot.
	first.Shutdown()
	second := f.service(t)

	resumed, err := second.Resume(ctx, view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, view.AttemptID, resumed.AttemptID)
	assert.Equal(t, session.StateInProgress, resumed.State)
	assert.Equal(t, map[uint]string{2: "False", 4: "1890"}, resumed.Answers)
	assert.LessOrEqual(t, resumed.Remaining, 3600)
	assert.Positive(t, resumed.Remaining)

	started := f.publisher.EventsOfType(events.EventAttemptStarted)
	require.Len(t, started, 2)
	assert.Equal(t, 2, started[1].Data.(events.AttemptStartedEvent).RestoredAnswers)

	_, err = second.Resume(ctx, "no-such-attempt")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestAttemptService_Submit(t *testing.T) {
	f := newAttemptFixture(t)
	svc := f.service(t)
	ctx := context.Background()

	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Submission")).
		Run(func(args mock.Arguments) { args.Get(1).(*models.Submission).ID = 42 }).
		Return(nil)

	view, err := svc.Start(ctx, &StartAttemptRequest{SkillID: 10})
	require.NoError(t, err)
	_, err = svc.SetAnswer(ctx, view.AttemptID, answer(1, "True"))
	require.NoError(t, err)

	receipt, err := svc.Submit(ctx, view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, uint(42), receipt.SubmissionID)
	assert.Equal(t, 1.0, receipt.TotalScore)

	submitted := f.publisher.EventsOfType(events.EventAttemptSubmitted)
	require.Len(t, submitted, 1)
	payload := submitted[0].Data.(events.AttemptSubmittedEvent)
	assert.Equal(t, uint(42), payload.SubmissionID)
	assert.Equal(t, models.SkillReading, payload.SkillType)
	assert.False(t, payload.Automatic)

	err = f.cache.Get(ctx, cache.AnswerSnapshotKey(view.AttemptID), &attemptSnapshot{})
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	_, err = svc.Submit(ctx, view.AttemptID)
	assert.ErrorIs(t, err, ErrAttemptAlreadySubmitted)

	_, err = svc.SetAnswer(ctx, view.AttemptID, answer(2, "False"))
	assert.ErrorIs(t, err, ErrAttemptNotActive)
}

func TestAttemptService_SubmitFailureKeepsAnswers(t *testing.T) {
	f := newAttemptFixture(t)
	svc := f.service(t)
	ctx := context.Background()

	f.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

	view, err := svc.Start(ctx, &StartAttemptRequest{SkillID: 10})
	require.NoError(t, err)
	_, err = svc.SetAnswer(ctx, view.AttemptID, answer(1, "True"))
	require.NoError(t, err)

	_, err = svc.Submit(ctx, view.AttemptID)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	failed := f.publisher.EventsOfType(events.EventAttemptSubmissionFailed)
	require.Len(t, failed, 1)
	assert.True(t, failed[0].Data.(events.AttemptSubmissionFailedEvent).Retryable)

	got, err := svc.Get(ctx, view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, session.StateInProgress, got.State)
	assert.Equal(t, "True", got.Answers[1])

	var snap attemptSnapshot
	assert.NoError(t, f.cache.Get(ctx, cache.AnswerSnapshotKey(view.AttemptID), &snap))
}

func TestAttemptService_AutoSubmitWhenTimeRunsOut(t *testing.T) {
	f := newAttemptFixture(t)
	f.config.TickInterval = 5 * time.Millisecond
	f.opts = content.BuildOptions{DefaultTimeLimitSeconds: 2}

	untimed := readingSkill()
	untimed.ID = 11
	untimed.TimeLimit = nil
	require.NoError(t, f.store.Save(context.Background(), untimed))

	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	svc := f.service(t)
	view, err := svc.Start(context.Background(), &StartAttemptRequest{SkillID: 11})
	require.NoError(t, err)
	assert.Equal(t, 2, view.Duration)

	assert.Eventually(t, func() bool {
		return len(f.publisher.EventsOfType(events.EventAttemptSubmitted)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	payload := f.publisher.EventsOfType(events.EventAttemptSubmitted)[0].Data.(events.AttemptSubmittedEvent)
	assert.True(t, payload.Automatic)
	assert.Equal(t, 2, payload.TimeSpentSeconds)
}

func TestAttemptService_ConcurrentResumeSubmitsOnce(t *testing.T) {
	f := newAttemptFixture(t)
	f.config.TickInterval = 5 * time.Millisecond
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	require.NoError(t, f.cache.Set(ctx, cache.AnswerSnapshotKey("att-1"), attemptSnapshot{
		AttemptID:   "att-1",
		SkillID:     10,
		Duration:    3600,
		Remaining:   1,
		CurrentPart: 1,
		Answers:     map[uint]string{1: "True"},
		SavedAt:     time.Now(),
	}, time.Hour))

	svc := f.service(t)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := svc.Resume(ctx, "att-1")
			if assert.NoError(t, err) {
				ids[i] = view.AttemptID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, "att-1", id)
	}

	assert.Eventually(t, func() bool {
		return len(f.publisher.EventsOfType(events.EventAttemptSubmitted)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.Len(t, f.publisher.EventsOfType(events.EventAttemptSubmitted), 1)
	assert.Len(t, f.publisher.EventsOfType(events.EventAttemptStarted), 1)
	f.repo.AssertNumberOfCalls(t, "Create", 1)
}

func TestAttemptService_SubmittedAttemptsAreEvicted(t *testing.T) {
	f := newAttemptFixture(t)
	f.config.RetainSubmitted = 100 * time.Millisecond
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	svc := f.service(t)
	ctx := context.Background()

	view, err := svc.Start(ctx, &StartAttemptRequest{SkillID: 10})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, view.AttemptID)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, view.AttemptID)
	assert.ErrorIs(t, err, ErrAttemptAlreadySubmitted)

	assert.Eventually(t, func() bool {
		_, err := svc.Get(ctx, view.AttemptID)
		return errors.Is(err, ErrAttemptNotFound)
	}, time.Second, 5*time.Millisecond)

	// The snapshot went with the submission, so the attempt cannot come back.
	_, err = svc.Resume(ctx, view.AttemptID)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestAttemptService_NavigateAndExtend(t *testing.T) {
	f := newAttemptFixture(t)
	svc := f.service(t)
	ctx := context.Background()

	view, err := svc.Start(ctx, &StartAttemptRequest{SkillID: 10})
	require.NoError(t, err)

	_, err = svc.Navigate(ctx, view.AttemptID, 3)
	assert.True(t, IsValidation(err))

	moved, err := svc.Navigate(ctx, view.AttemptID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.CurrentPart)

	extended, err := svc.ExtendTime(ctx, view.AttemptID, 300)
	require.NoError(t, err)
	assert.Equal(t, 3900, extended.Duration)

	_, err = svc.ExtendTime(ctx, view.AttemptID, 0)
	assert.True(t, IsValidation(err))

	require.NoError(t, svc.Close(ctx, view.AttemptID))
	_, err = svc.Get(ctx, view.AttemptID)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestAttemptService_StartUnknownSkill(t *testing.T) {
	f := newAttemptFixture(t)
	svc := f.service(t)

	_, err := svc.Start(context.Background(), &StartAttemptRequest{SkillID: 999})
	assert.ErrorIs(t, err, ErrSkillNotFound)

	_, err = svc.Start(context.Background(), &StartAttemptRequest{})
	assert.True(t, IsValidation(err))
}

func TestAttemptService_RenderGroup(t *testing.T) {
	f := newAttemptFixture(t)
	svc := f.service(t)
	ctx := context.Background()

	view, err := svc.Start(ctx, &StartAttemptRequest{SkillID: 10})
	require.NoError(t, err)
	_, err = svc.SetAnswer(ctx, view.AttemptID, answer(3, "bridge"))
	require.NoError(t, err)

	rendered, err := svc.RenderGroup(ctx, view.AttemptID, 1001)
	require.NoError(t, err)
	require.Len(t, rendered.Controls, 2)
	assert.Equal(t, uint(3), rendered.Controls[0].QuestionID)
	assert.Contains(t, rendered.HTML, `id="inline-placeholder-3"`)
	assert.Contains(t, rendered.HTML, `value="bridge"`)
	assert.Contains(t, rendered.HTML, " was finished in ")

	_, err = svc.RenderGroup(ctx, view.AttemptID, 1000)
	assert.True(t, IsBusinessRule(err))

	_, err = svc.RenderGroup(ctx, view.AttemptID, 4242)
	assert.True(t, IsNotFound(err))
}
