package session

import (
	"sort"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// AnswerMap holds questionId -> value for one attempt. An entry exists only
// once the learner has answered; "" is a real answer. It is not safe for
// concurrent use on its own; Session guards it.
type AnswerMap struct {
	values   map[uint]string
	revision uint64
}

func NewAnswerMap() *AnswerMap {
	return &AnswerMap{values: make(map[uint]string)}
}

// Set stores value and returns the new revision.
func (m *AnswerMap) Set(questionID uint, value string) uint64 {
	m.values[questionID] = value
	m.revision++
	return m.revision
}

func (m *AnswerMap) Get(questionID uint) (string, bool) {
	v, ok := m.values[questionID]
	return v, ok
}

func (m *AnswerMap) Status(questionID uint) models.AnswerStatus {
	if _, ok := m.values[questionID]; ok {
		return models.AnswerAnswered
	}
	return models.AnswerUnanswered
}

func (m *AnswerMap) Len() int { return len(m.values) }

func (m *AnswerMap) Revision() uint64 { return m.revision }

// Snapshot copies the current entries.
func (m *AnswerMap) Snapshot() map[uint]string {
	out := make(map[uint]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Records lists one record per entry ordered by question ID.
func (m *AnswerMap) Records() []models.AnswerRecord {
	out := make([]models.AnswerRecord, 0, len(m.values))
	for id, v := range m.values {
		out = append(out, models.AnswerRecord{QuestionID: id, AnswerText: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}
