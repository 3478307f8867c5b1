package services

import (
	"context"
	"time"

	"quizverse/models"

	"gorm.io/gorm"
)

// ProctorService ingests integrity-monitoring events. The stream is
// append-only telemetry: no update, no delete, and deliberately no check
// that an attempt is in progress, so late or stray client signals are
// never lost.
type ProctorService struct {
	db   *gorm.DB
	feed *ProctorFeed
}

func NewProctorService(db *gorm.DB, feed *ProctorFeed) *ProctorService {
	return &ProctorService{db: db, feed: feed}
}

type RecordEventRequest struct {
	EventType      string `json:"eventType"`
	QuestionNumber int    `json:"questionNumber"`
}

func (s *ProctorService) RecordEvent(ctx context.Context, quizID, studentID uint, role models.Role, req *RecordEventRequest) error {
	if role != models.RoleStudent {
		return newError(KindAuthorization, "not authorized")
	}
	if req.EventType == "" {
		return newError(KindValidation, "eventType is required")
	}
	if req.QuestionNumber <= 0 {
		return newError(KindValidation, "questionNumber is required")
	}

	entry := models.ProctorLog{
		QuizID:         quizID,
		StudentID:      studentID,
		EventType:      req.EventType,
		QuestionNumber: req.QuestionNumber,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return wrapError(KindPersistence, "record event", err)
	}

	if s.feed != nil {
		var student models.User
		email := ""
		if err := s.db.First(&student, studentID).Error; err == nil {
			email = student.Email
		}
		// Best effort: a dropped feed message never fails the record.
		s.feed.Publish(ctx, ProctorEvent{
			QuizID:         entry.QuizID,
			StudentEmail:   email,
			EventType:      entry.EventType,
			QuestionNumber: entry.QuestionNumber,
			Timestamp:      entry.Timestamp,
		})
	}
	return nil
}

// ListEvents returns a quiz's proctor events in display order.
func (s *ProctorService) ListEvents(quizID uint) ([]models.ProctorLog, error) {
	var logs []models.ProctorLog
	if err := s.db.Where("quiz_id = ?", quizID).Order("timestamp").Preload("Student").Find(&logs).Error; err != nil {
		return nil, wrapError(KindPersistence, "list events", err)
	}
	return logs, nil
}
