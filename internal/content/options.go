package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

type OptionSource string

const (
	SourceNone            OptionSource = "none"
	SourceQuestionOptions OptionSource = "question_options"
	SourceMetadataAnswers OptionSource = "metadata_answers"
	SourceMetadataObjects OptionSource = "metadata_objects"
	SourceMetadataStrings OptionSource = "metadata_strings"
	SourceGroupOptions    OptionSource = "group_options"
	SourceDefaults        OptionSource = "defaults"
)

var (
	YesNoNotGivenChoices     = []string{"Yes", "No", "Not Given"}
	TrueFalseNotGivenChoices = []string{"True", "False", "Not Given"}
)

// OptionSet holds either lettered options (multiple choice) or a fixed list
// of literal choices. At most one of the two is populated.
type OptionSet struct {
	Options []models.CanonicalOption `json:"options,omitempty"`
	Choices []string                 `json:"choices,omitempty"`
	Source  OptionSource             `json:"source"`

	// CorrectIndex points at the option flagged is_correct on the question
	// the options were read from. It never leaves the server.
	CorrectIndex *int `json:"-"`
}

func (s OptionSet) IsEmpty() bool {
	return len(s.Options) == 0 && len(s.Choices) == 0
}

// Values lists the strings a learner answer may take.
func (s OptionSet) Values() []string {
	if len(s.Options) > 0 {
		out := make([]string, len(s.Options))
		for i, o := range s.Options {
			out[i] = o.Letter
		}
		return out
	}
	return append([]string(nil), s.Choices...)
}

func (s OptionSet) Allows(value string) bool {
	for _, v := range s.Values() {
		if v == value {
			return true
		}
	}
	return false
}

var paragraphWrapper = regexp.MustCompile(`(?i)^<p[^>]*>|</p>$`)

// CleanOptionText removes one leading <p ...> and one trailing </p>, then trims.
func CleanOptionText(text string) string {
	return strings.TrimSpace(paragraphWrapper.ReplaceAllString(text, ""))
}

func letterFor(index int) string {
	return string(rune('A' + index))
}

// optionEntry is one decoded option before lettering.
type optionEntry struct {
	text    string
	correct bool
}

func lettered(entries []optionEntry) []models.CanonicalOption {
	out := make([]models.CanonicalOption, len(entries))
	for i, e := range entries {
		out[i] = models.CanonicalOption{Letter: letterFor(i), Text: CleanOptionText(e.text)}
	}
	return out
}

func flaggedIndex(entries []optionEntry) (int, bool) {
	for i, e := range entries {
		if e.correct {
			return i, true
		}
	}
	return 0, false
}

func letteredSet(entries []optionEntry, source OptionSource) OptionSet {
	set := OptionSet{Options: lettered(entries), Source: source}
	if i, ok := flaggedIndex(entries); ok {
		set.CorrectIndex = &i
	}
	return set
}

func questionEntries(opts []models.RawOption) []optionEntry {
	out := make([]optionEntry, len(opts))
	for i, o := range opts {
		out[i] = optionEntry{text: o.Text(), correct: o.IsCorrect}
	}
	return out
}

// AnswerKey resolves the key a learner answer is compared with. For lettered
// options the key is a letter: the option the question flags is_correct wins,
// then a stored letter, then a stored option text. Anything else returns the
// stored answer trimmed. ok is false when the question has no key at all.
func (s OptionSet) AnswerKey(q models.Question) (key string, ok bool) {
	if len(s.Options) > 0 {
		if i, flagged := questionFlag(q); flagged && i < len(s.Options) {
			return s.Options[i].Letter, true
		}
	}
	if q.CorrectAnswer == nil {
		return "", false
	}
	key = strings.TrimSpace(*q.CorrectAnswer)
	for _, o := range s.Options {
		if strings.EqualFold(o.Letter, key) {
			return o.Letter, true
		}
	}
	text := CleanOptionText(key)
	for _, o := range s.Options {
		if strings.EqualFold(o.Text, text) {
			return o.Letter, true
		}
	}
	return key, true
}

// questionFlag finds the option a question flags as correct, reading the
// same sources Normalize reads options from.
func questionFlag(q models.Question) (int, bool) {
	if len(q.Options) > 0 {
		return flaggedIndex(questionEntries(q.Options))
	}
	entries, err := decodeMetadataEntries(q.RawMetadata)
	if err != nil {
		return 0, false
	}
	return flaggedIndex(entries)
}

// Normalize resolves the option set for a group. firstQuestion may be nil.
// Problems with the payload come back as warnings, never as errors.
func Normalize(questionType models.QuestionType, group models.QuestionGroup, firstQuestion *models.Question) (OptionSet, []Warning) {
	switch questionType {
	case models.MultipleChoice:
		return normalizeMultipleChoice(group, firstQuestion)
	case models.YesNoNotGiven:
		return fixedOrGroup(group, YesNoNotGivenChoices), nil
	case models.TrueFalseNotGiven:
		return fixedOrGroup(group, TrueFalseNotGivenChoices), nil
	case models.ShortText, models.ShortAnswer:
		return OptionSet{Source: SourceNone}, nil
	default:
		return fixedOrGroup(group, nil), nil
	}
}

func fixedOrGroup(group models.QuestionGroup, defaults []string) OptionSet {
	if len(group.Options) > 0 {
		return OptionSet{Choices: append([]string(nil), group.Options...), Source: SourceGroupOptions}
	}
	if len(defaults) > 0 {
		return OptionSet{Choices: append([]string(nil), defaults...), Source: SourceDefaults}
	}
	return OptionSet{Source: SourceNone}
}

func normalizeMultipleChoice(group models.QuestionGroup, first *models.Question) (OptionSet, []Warning) {
	if first == nil {
		return OptionSet{Source: SourceNone}, []Warning{newWarning(WarnNoOptions, group.ID, "multiple choice group has no questions")}
	}
	if len(first.Options) > 0 {
		return letteredSet(questionEntries(first.Options), SourceQuestionOptions), nil
	}

	set, err := decodeMetadataOptions(first.RawMetadata)
	switch {
	case errors.Is(err, errMalformedMetadata):
		w := newWarning(WarnMalformedMetadata, group.ID, "question metadata is not valid JSON")
		w.QuestionID = first.ID
		return OptionSet{Source: SourceNone}, []Warning{w}
	case errors.Is(err, errUnrecognizedMetadata):
		w := newWarning(WarnUnrecognizedMetadata, group.ID, "question metadata matches no known option shape")
		w.QuestionID = first.ID
		return OptionSet{Source: SourceNone}, []Warning{w}
	}
	if set.IsEmpty() {
		w := newWarning(WarnNoOptions, group.ID, "no options found on question or in metadata")
		w.QuestionID = first.ID
		return set, []Warning{w}
	}
	return set, nil
}

var (
	errMalformedMetadata    = errors.New("malformed metadata")
	errUnrecognizedMetadata = errors.New("unrecognized metadata shape")
)

// metadataShape is one entry of the decode chain. decode reports false when
// the document does not have this shape.
type metadataShape struct {
	source OptionSource
	decode func(doc json.RawMessage) ([]optionEntry, bool)
}

var metadataShapes = []metadataShape{
	{source: SourceMetadataAnswers, decode: decodeAnswersObject},
	{source: SourceMetadataObjects, decode: decodeObjectArray},
	{source: SourceMetadataStrings, decode: decodeStringArray},
}

func decodeMetadataOptions(raw json.RawMessage) (OptionSet, error) {
	entries, source, err := decodeMetadata(raw)
	if err != nil || entries == nil {
		return OptionSet{Source: SourceNone}, err
	}
	return letteredSet(entries, source), nil
}

func decodeMetadataEntries(raw json.RawMessage) ([]optionEntry, error) {
	entries, _, err := decodeMetadata(raw)
	return entries, err
}

func decodeMetadata(raw json.RawMessage) ([]optionEntry, OptionSource, error) {
	doc, err := unwrapMetadata(raw)
	if err != nil {
		return nil, SourceNone, err
	}
	if doc == nil {
		return nil, SourceNone, nil
	}
	for _, shape := range metadataShapes {
		if entries, ok := shape.decode(doc); ok {
			return entries, shape.source, nil
		}
	}
	return nil, SourceNone, errUnrecognizedMetadata
}

// unwrapMetadata accepts either a JSON value or a JSON string holding one.
func unwrapMetadata(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errMalformedMetadata
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		raw = json.RawMessage(s)
	}
	if !json.Valid(raw) {
		return nil, errMalformedMetadata
	}
	return raw, nil
}

func decodeAnswersObject(doc json.RawMessage) ([]optionEntry, bool) {
	if doc[0] != '{' {
		return nil, false
	}
	var wrapper struct {
		Answers json.RawMessage `json:"answers"`
	}
	if err := json.Unmarshal(doc, &wrapper); err != nil || len(wrapper.Answers) == 0 || wrapper.Answers[0] != '[' {
		return nil, false
	}
	var answers []json.RawMessage
	if err := json.Unmarshal(wrapper.Answers, &answers); err != nil {
		return nil, false
	}
	entries := make([]optionEntry, len(answers))
	for i, a := range answers {
		entries[i] = objectEntry(a)
	}
	return entries, true
}

func decodeObjectArray(doc json.RawMessage) ([]optionEntry, bool) {
	items, ok := firstElementKind(doc, '{')
	if !ok {
		return nil, false
	}
	entries := make([]optionEntry, len(items))
	for i, item := range items {
		entries[i] = objectEntry(item)
	}
	return entries, true
}

func decodeStringArray(doc json.RawMessage) ([]optionEntry, bool) {
	items, ok := firstElementKind(doc, '"')
	if !ok {
		return nil, false
	}
	entries := make([]optionEntry, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			entries[i].text = s
		}
	}
	return entries, true
}

// objectEntry reads answer_content or content plus the correctness flag from
// an option object. Anything else contributes an empty, unflagged entry.
func objectEntry(item json.RawMessage) optionEntry {
	var raw struct {
		Content       string          `json:"content"`
		AnswerContent string          `json:"answer_content"`
		IsCorrect     json.RawMessage `json:"is_correct"`
		IsCorrectAlt  json.RawMessage `json:"isCorrect"`
	}
	if err := json.Unmarshal(item, &raw); err != nil {
		return optionEntry{}
	}
	entry := optionEntry{text: raw.Content, correct: truthy(raw.IsCorrect) || truthy(raw.IsCorrectAlt)}
	if raw.AnswerContent != "" {
		entry.text = raw.AnswerContent
	}
	return entry
}

// truthy accepts true, "true" and 1. Authoring tools disagree on the type.
func truthy(raw json.RawMessage) bool {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(raw)), `"`)) {
	case "true", "1":
		return true
	}
	return false
}

// firstElementKind splits a non-empty array whose first element starts with lead.
func firstElementKind(doc json.RawMessage, lead byte) ([]json.RawMessage, bool) {
	if doc[0] != '[' {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(doc, &items); err != nil || len(items) == 0 {
		return nil, false
	}
	first := bytes.TrimSpace(items[0])
	if len(first) == 0 || first[0] != lead {
		return nil, false
	}
	return items, true
}
