package models

import (
	"encoding/json"
	"strings"
)

type QuestionType string

const (
	MultipleChoice    QuestionType = "multiple_choice"
	TrueFalseNotGiven QuestionType = "true_false_not_given"
	YesNoNotGiven     QuestionType = "yes_no_not_given"
	ShortText         QuestionType = "short_text"
	ShortAnswer       QuestionType = "short_answer"
	FillBlank         QuestionType = "fill_blank"
	TrueFalse         QuestionType = "true_false"
	YesNo             QuestionType = "yes_no"
	Matching          QuestionType = "matching"
	MatchingHeadings  QuestionType = "matching_headings"
	Essay             QuestionType = "essay"
	SpeakingPrompt    QuestionType = "speaking"

	DefaultGroupType = TrueFalseNotGiven
)

const DefaultLayoutType = 1

// ParseQuestionType lowercases the backend value. Groups without a type
// fall back to true_false_not_given.
func ParseQuestionType(raw string) QuestionType {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultGroupType
	}
	return QuestionType(strings.ToLower(raw))
}

// IsObjective reports whether an answer can be scored against a stored key.
func (t QuestionType) IsObjective() bool {
	switch t {
	case Essay, SpeakingPrompt:
		return false
	}
	return true
}

var knownQuestionTypes = map[QuestionType]struct{}{
	MultipleChoice: {}, TrueFalseNotGiven: {}, YesNoNotGiven: {}, ShortText: {},
	ShortAnswer: {}, FillBlank: {}, TrueFalse: {}, YesNo: {}, Matching: {},
	MatchingHeadings: {}, Essay: {}, SpeakingPrompt: {},
}

func (t QuestionType) IsKnown() bool {
	_, ok := knownQuestionTypes[t]
	return ok
}

// Raw payloads as served by the exam content API. Field shapes vary between
// authoring tools, so metadata and ui_layer stay undecoded here.

type RawSkill struct {
	ID        uint         `json:"id"`
	Name      string       `json:"name"`
	SkillType string       `json:"skill_type" validate:"omitempty,skill_type"`
	TimeLimit *int         `json:"time_limit"` // minutes
	Sections  []RawSection `json:"sections" validate:"dive"`
}

type RawSection struct {
	ID             uint            `json:"id"`
	Title          string          `json:"title"`
	Content        string          `json:"content"`
	AudioURL       string          `json:"audio_url"`
	UILayer        json.RawMessage `json:"ui_layer"`
	QuestionGroups []RawGroup      `json:"question_groups" validate:"dive"`
}

type RawGroup struct {
	ID           uint          `json:"id"`
	QuestionType string        `json:"question_type" validate:"omitempty,question_type"`
	Content      string        `json:"content"`
	Instructions string        `json:"instructions"`
	Options      []string      `json:"options"`
	AudioURL     string        `json:"audio_url"`
	Questions    []RawQuestion `json:"questions" validate:"dive"`
}

type RawQuestion struct {
	ID            uint            `json:"id" validate:"required"`
	Content       string          `json:"content"`
	CorrectAnswer *string         `json:"correct_answer"`
	Points        float64         `json:"points"`
	Options       []RawOption     `json:"options"`
	Metadata      json.RawMessage `json:"metadata"`
}

type RawOption struct {
	Content       string `json:"content"`
	AnswerContent string `json:"answer_content"`
	IsCorrect     bool   `json:"is_correct"`
}

// Text prefers answer_content over content.
func (o RawOption) Text() string {
	if o.AnswerContent != "" {
		return o.AnswerContent
	}
	return o.Content
}

// Canonical model, read-only for the lifetime of an attempt.

type CanonicalOption struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

type Question struct {
	ID            uint            `json:"id"`
	DisplayNumber int             `json:"display_number"`
	Content       string          `json:"content"`
	CorrectAnswer *string         `json:"correct_answer,omitempty"`
	Points        float64         `json:"points"`
	Options       []RawOption     `json:"-"`
	RawMetadata   json.RawMessage `json:"-"`
}

type QuestionGroup struct {
	ID           uint         `json:"id"`
	QuestionType QuestionType `json:"question_type"`
	RawContent   string       `json:"raw_content"`
	Instructions string       `json:"instructions"`
	Options      []string     `json:"options,omitempty"`
	Questions    []Question   `json:"questions"`

	// Layout
	AudioURL         string `json:"audio_url,omitempty"`
	GroupInstruction string `json:"group_instruction,omitempty"`
	SectionTitle     string `json:"section_title,omitempty"`
	StartNumber      int    `json:"start_number"`
	EndNumber        int    `json:"end_number"`
}

// DisplaysContent is false when the group content was a JSON layout document.
func (g QuestionGroup) DisplaysContent() bool {
	return g.RawContent != "" && g.GroupInstruction == "" && g.SectionTitle == "" && !looksLikeJSON(g.RawContent)
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") && json.Valid([]byte(s))
}

type Passage struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Part struct {
	ID         uint            `json:"id"`
	Number     int             `json:"number"`
	Title      string          `json:"title"`
	Passage    Passage         `json:"passage"`
	AudioURL   string          `json:"audio_url,omitempty"`
	LayoutType int             `json:"layout_type"`
	Groups     []QuestionGroup `json:"groups"`
}

// QuestionCount counts the questions across all groups of the part.
func (p Part) QuestionCount() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Questions)
	}
	return n
}

type Exam struct {
	SkillID          uint      `json:"skill_id"`
	SectionID        *uint     `json:"section_id,omitempty"`
	SkillType        SkillType `json:"skill_type"`
	Name             string    `json:"name"`
	TimeLimitSeconds int       `json:"time_limit_seconds"`
	Parts            []Part    `json:"parts"`
}

// Questions returns every question in display order.
func (e *Exam) Questions() []Question {
	var out []Question
	for _, p := range e.Parts {
		for _, g := range p.Groups {
			out = append(out, g.Questions...)
		}
	}
	return out
}

// GroupOf finds the group holding the question.
func (e *Exam) GroupOf(questionID uint) (*QuestionGroup, bool) {
	for pi := range e.Parts {
		for gi := range e.Parts[pi].Groups {
			g := &e.Parts[pi].Groups[gi]
			for _, q := range g.Questions {
				if q.ID == questionID {
					return g, true
				}
			}
		}
	}
	return nil, false
}
