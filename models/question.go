package models

import "time"

// OptionKeys is the fixed set of answer keys every question carries.
var OptionKeys = []string{"A", "B", "C", "D"}

type Question struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	QuizID        uint      `json:"quiz_id" gorm:"not null;index"`
	Text          string    `json:"text" gorm:"not null"`
	OptionA       string    `json:"option_a" gorm:"not null"`
	OptionB       string    `json:"option_b" gorm:"not null"`
	OptionC       string    `json:"option_c" gorm:"not null"`
	OptionD       string    `json:"option_d" gorm:"not null"`
	CorrectAnswer string    `json:"correct_answer" gorm:"size:1;not null"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Relationships
	Quiz Quiz `json:"quiz,omitempty"`
}

// Options returns the four option texts keyed A-D.
func (q *Question) Options() map[string]string {
	return map[string]string{
		"A": q.OptionA,
		"B": q.OptionB,
		"C": q.OptionC,
		"D": q.OptionD,
	}
}
