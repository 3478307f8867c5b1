package models

import "time"

// ProctorLog is an append-only integrity-monitoring event recorded while a
// student sits a quiz. It is correlated to the attempt by (quiz, student),
// never by attempt id, and is independent of grading state.
type ProctorLog struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	QuizID         uint      `json:"quiz_id" gorm:"not null;index"`
	StudentID      uint      `json:"student_id" gorm:"not null"`
	EventType      string    `json:"event_type" gorm:"not null"`
	QuestionNumber int       `json:"question_number" gorm:"not null"`
	Timestamp      time.Time `json:"timestamp"`

	// Relationships
	Quiz    Quiz `json:"quiz,omitempty"`
	Student User `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}
