package models

import "time"

// Attempt is a student's single permitted pass at a quiz. The composite
// unique index is the correctness floor for the one-attempt guarantee:
// two concurrent starts for the same (quiz, student) cannot both insert.
type Attempt struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	QuizID         uint       `json:"quiz_id" gorm:"not null;uniqueIndex:idx_attempts_quiz_student"`
	StudentID      uint       `json:"student_id" gorm:"not null;uniqueIndex:idx_attempts_quiz_student"`
	Score          *int       `json:"score"`
	TotalQuestions *int       `json:"total_questions"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	Finished       bool       `json:"finished" gorm:"not null;default:false"`

	// Relationships
	Quiz    Quiz `json:"quiz,omitempty"`
	Student User `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}
