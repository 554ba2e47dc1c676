package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// Fallback attempt durations in seconds when the skill carries no time limit.
var defaultTimeLimits = map[models.SkillType]int{
	models.SkillReading:   1800,
	models.SkillListening: 2400,
	models.SkillWriting:   3600,
	models.SkillSpeaking:  900,
}

type BuildOptions struct {
	// DefaultTimeLimitSeconds overrides the per-skill fallback duration.
	DefaultTimeLimitSeconds int
}

// BuildExam assembles the canonical exam for a whole skill. Display numbers
// run across every section of the skill.
func BuildExam(skill models.RawSkill, opts BuildOptions) (*models.Exam, []Warning) {
	exam := &models.Exam{
		SkillID:   skill.ID,
		SkillType: models.ParseSkillType(skill.SkillType),
		Name:      skill.Name,
	}
	exam.TimeLimitSeconds = timeLimitSeconds(skill.TimeLimit, exam.SkillType, opts)

	var warnings []Warning
	next := 1
	for i, section := range skill.Sections {
		part, ws := buildPart(section, i+1, &next)
		exam.Parts = append(exam.Parts, part)
		warnings = append(warnings, ws...)
	}
	return exam, warnings
}

// BuildSectionExam assembles a single section as a one-part exam numbered from 1.
func BuildSectionExam(skill models.RawSkill, sectionID uint, opts BuildOptions) (*models.Exam, []Warning, error) {
	for _, section := range skill.Sections {
		if section.ID != sectionID {
			continue
		}
		single := skill
		single.Sections = []models.RawSection{section}
		exam, warnings := BuildExam(single, opts)
		id := sectionID
		exam.SectionID = &id
		return exam, warnings, nil
	}
	return nil, nil, fmt.Errorf("section %d not found in skill %d", sectionID, skill.ID)
}

func timeLimitSeconds(minutes *int, skill models.SkillType, opts BuildOptions) int {
	if minutes != nil && *minutes > 0 {
		return *minutes * 60
	}
	if opts.DefaultTimeLimitSeconds > 0 {
		return opts.DefaultTimeLimitSeconds
	}
	if d, ok := defaultTimeLimits[skill]; ok {
		return d
	}
	return defaultTimeLimits[models.SkillReading]
}

func buildPart(section models.RawSection, number int, next *int) (models.Part, []Warning) {
	part := models.Part{
		ID:         section.ID,
		Number:     number,
		Passage:    models.Passage{Title: section.Title, Content: section.Content},
		AudioURL:   section.AudioURL,
		LayoutType: parseLayoutType(section.UILayer),
	}

	first := *next
	var warnings []Warning
	for _, rg := range section.QuestionGroups {
		group := buildGroup(rg, section, next)
		if len(group.Questions) == 0 {
			warnings = append(warnings, newWarning(WarnEmptyGroup, group.ID, "group has no questions"))
		}
		if !group.QuestionType.IsKnown() {
			warnings = append(warnings, newWarning(WarnUnknownQuestionType, group.ID, "unknown question type %q", group.QuestionType))
		}
		part.Groups = append(part.Groups, group)
	}

	last := *next - 1
	if last < first {
		last = first
	}
	part.Title = fmt.Sprintf("Part %d (%d-%d)", number, first, last)
	return part, warnings
}

func buildGroup(rg models.RawGroup, section models.RawSection, next *int) models.QuestionGroup {
	group := models.QuestionGroup{
		ID:           rg.ID,
		QuestionType: models.ParseQuestionType(rg.QuestionType),
		RawContent:   rg.Content,
		Instructions: rg.Instructions,
		Options:      rg.Options,
		AudioURL:     rg.AudioURL,
	}
	if group.AudioURL == "" {
		group.AudioURL = section.AudioURL
	}
	group.GroupInstruction, group.SectionTitle = layoutFields(rg.Content)

	group.StartNumber = *next
	for _, rq := range rg.Questions {
		group.Questions = append(group.Questions, models.Question{
			ID:            rq.ID,
			DisplayNumber: *next,
			Content:       rq.Content,
			CorrectAnswer: rq.CorrectAnswer,
			Points:        rq.Points,
			Options:       rq.Options,
			RawMetadata:   rq.Metadata,
		})
		*next++
	}
	group.EndNumber = group.StartNumber
	if n := len(group.Questions); n > 0 {
		group.EndNumber = group.Questions[n-1].DisplayNumber
	}
	return group
}

// layoutFields reads group_instruction and section_title when the group
// content is a JSON document rather than passage markup.
func layoutFields(content string) (instruction, title string) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return "", ""
	}
	var doc struct {
		GroupInstruction string `json:"group_instruction"`
		SectionTitle     string `json:"section_title"`
	}
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return "", ""
	}
	return doc.GroupInstruction, doc.SectionTitle
}

// parseLayoutType accepts 2 or "2"; anything unusable gives the default layout.
func parseLayoutType(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return models.DefaultLayoutType
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return models.DefaultLayoutType
		}
	} else {
		s = string(raw)
	}
	n, err := strconv.Atoi(leadingDigits(strings.TrimSpace(s)))
	if err != nil || n == 0 {
		return models.DefaultLayoutType
	}
	return n
}

func leadingDigits(s string) string {
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && s[end] == '-') {
		end++
	}
	return s[:end]
}
