package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-engine/internal/content"
	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

func newContentFixture(t *testing.T) (ContentService, *events.MockEventPublisher) {
	t.Helper()
	publisher := events.NewMockEventPublisher(nil)
	store := NewCacheSkillStore(newTestCache(t))
	return NewContentService(store, publisher, validator.New(), content.BuildOptions{}, testLogger("content")), publisher
}

func brokenSkill() *models.RawSkill {
	skill := readingSkill()
	skill.ID = 12
	skill.Sections[0].QuestionGroups = append(skill.Sections[0].QuestionGroups, models.RawGroup{
		ID:           1002,
		QuestionType: "multiple_choice",
		Questions: []models.RawQuestion{
			{ID: 5, Content: "Pick one", Metadata: json.RawMessage(`"{\"answers\": ["`)},
		},
	})
	return skill
}

func TestContentService_RegisterAndPrepare(t *testing.T) {
	svc, _ := newContentFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, readingSkill())
	require.NoError(t, err)
	assert.Equal(t, uint(10), res.SkillID)
	assert.Equal(t, 4, res.QuestionCount)
	assert.Equal(t, 1, res.PartCount)
	assert.Empty(t, res.Issues)

	plan, err := svc.Prepare(ctx, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, "Part 1 (1-4)", plan.Exam.Parts[0].Title)
	assert.Equal(t, content.FixedChoicePerQuestion, plan.Groups[0].Strategy)
	assert.Equal(t, content.InlineTemplate, plan.Groups[1].Strategy)

	section := uint(100)
	plan, err = svc.Prepare(ctx, 10, &section)
	require.NoError(t, err)
	require.NotNil(t, plan.Exam.SectionID)

	missing := uint(999)
	_, err = svc.Prepare(ctx, 10, &missing)
	assert.ErrorIs(t, err, ErrSectionNotFound)

	_, err = svc.Prepare(ctx, 77, nil)
	assert.ErrorIs(t, err, ErrSkillNotFound)
}

func TestContentService_RegisterReportsIssuesWithoutBlocking(t *testing.T) {
	svc, _ := newContentFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, brokenSkill())
	require.NoError(t, err)
	require.NotEmpty(t, res.Issues)
	assert.Equal(t, string(content.WarnMalformedMetadata), res.Issues[0].Rule)

	_, err = svc.Register(ctx, &models.RawSkill{})
	assert.True(t, IsValidation(err))
}

func TestContentService_PlanPublishesIntegrityWarnings(t *testing.T) {
	svc, publisher := newContentFixture(t)

	plan, err := svc.Plan(context.Background(), brokenSkill(), nil)
	require.NoError(t, err)
	require.Len(t, plan.Warnings, 1)

	warnings := publisher.EventsOfType(events.EventContentIntegrityWarning)
	require.Len(t, warnings, 1)
	payload := warnings[0].Data.(events.ContentIntegrityWarningEvent)
	assert.Equal(t, uint(12), payload.SkillID)
	assert.Equal(t, uint(1002), payload.GroupID)
	assert.Equal(t, uint(5), payload.QuestionID)
	assert.Equal(t, string(content.WarnMalformedMetadata), payload.Code)

	// The broken group degrades to unanswerable, the rest still renders.
	group, ok := plan.Group(1002)
	require.True(t, ok)
	assert.True(t, group.Options.IsEmpty())
	b, ok := plan.Binding(5)
	require.True(t, ok)
	assert.False(t, b.Accepts("A"))
}
