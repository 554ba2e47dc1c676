package cache

import "fmt"

// AnswerSnapshotKey holds the answer map of one in-progress attempt.
func AnswerSnapshotKey(attemptID string) string {
	return fmt.Sprintf("exam:attempt:%s:answers", attemptID)
}

// AnswerSnapshotPattern matches every attempt snapshot.
const AnswerSnapshotPattern = "exam:attempt:*:answers"

// SkillKey holds the raw content payload of one exam skill.
func SkillKey(skillID uint) string {
	return fmt.Sprintf("exam:skill:%d", skillID)
}
