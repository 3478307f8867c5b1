package models

import "time"

type Quiz struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Title           string    `json:"title" gorm:"not null"`
	StartTime       time.Time `json:"start_time" gorm:"not null"`
	DurationMinutes int       `json:"duration_minutes" gorm:"not null"`
	TeacherID       uint      `json:"teacher_id" gorm:"not null;index"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Relationships. The quiz exclusively owns its questions, attempts and
	// proctor logs; deleting the quiz is the only way they are destroyed.
	Teacher     User         `json:"teacher,omitempty"`
	Questions   []Question   `json:"questions,omitempty" gorm:"foreignKey:QuizID"`
	Attempts    []Attempt    `json:"attempts,omitempty" gorm:"foreignKey:QuizID"`
	ProctorLogs []ProctorLog `json:"proctor_logs,omitempty" gorm:"foreignKey:QuizID"`
}
