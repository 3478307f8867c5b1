package services

import (
	"errors"
	"strconv"
	"time"

	"quizverse/models"

	"gorm.io/gorm"
)

// AttemptService is the state machine for a student's single pass through a
// quiz: NotStarted -> InProgress -> Finished. Finished is terminal; there is
// no retry and no resume. An attempt row is a one-shot ticket: its existence,
// finished or not, blocks any further start for the same (quiz, student).
type AttemptService struct {
	db *gorm.DB
}

func NewAttemptService(db *gorm.DB) *AttemptService {
	return &AttemptService{db: db}
}

// StudentQuestionView is the question shape served to students. It carries
// no correct-answer field; keep it that way.
type StudentQuestionView struct {
	ID      uint              `json:"id"`
	Text    string            `json:"text"`
	Options map[string]string `json:"options"`
}

type AttemptSession struct {
	AttemptID uint                  `json:"attemptId"`
	QuizTitle string                `json:"quizTitle"`
	Duration  int                   `json:"duration"`
	Questions []StudentQuestionView `json:"questions"`
}

type SubmitResult struct {
	Score          int `json:"score"`
	TotalQuestions int `json:"totalQuestions"`
}

type AttemptInfo struct {
	Score          *int `json:"score"`
	TotalQuestions *int `json:"totalQuestions"`
	Finished       bool `json:"finished"`
}

type StudentQuizSummary struct {
	QuizSummary
	Attempt *AttemptInfo `json:"attempt"`
}

// StudentQuizzes lists every quiz in the system together with the calling
// student's attempt state, if any.
func (s *AttemptService) StudentQuizzes(studentID uint, role models.Role) ([]StudentQuizSummary, error) {
	if role != models.RoleStudent {
		return nil, newError(KindAuthorization, "not authorized")
	}

	var quizzes []models.Quiz
	if err := s.db.Order("start_time").Find(&quizzes).Error; err != nil {
		return nil, wrapError(KindPersistence, "list quizzes", err)
	}

	out := make([]StudentQuizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		var count int64
		if err := s.db.Model(&models.Question{}).Where("quiz_id = ?", q.ID).Count(&count).Error; err != nil {
			return nil, wrapError(KindPersistence, "count questions", err)
		}
		entry := StudentQuizSummary{
			QuizSummary: QuizSummary{
				ID:              q.ID,
				Title:           q.Title,
				StartTime:       q.StartTime,
				DurationMinutes: q.DurationMinutes,
				QuestionCount:   int(count),
			},
		}

		var attempt models.Attempt
		err := s.db.Where("quiz_id = ? AND student_id = ?", q.ID, studentID).First(&attempt).Error
		switch {
		case err == nil:
			entry.Attempt = &AttemptInfo{
				Score:          attempt.Score,
				TotalQuestions: attempt.TotalQuestions,
				Finished:       attempt.Finished,
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// no attempt yet
		default:
			return nil, wrapError(KindPersistence, "load attempt", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

// StartAttempt creates the attempt row and returns the quiz's questions with
// the correct answers stripped. Eligibility is a lower bound only: starting
// is allowed any time at or after the quiz's start time, however late.
// The unique index on (quiz_id, student_id) closes the race two concurrent
// starts would otherwise win together.
func (s *AttemptService) StartAttempt(quizID, studentID uint, role models.Role) (*AttemptSession, error) {
	if role != models.RoleStudent {
		return nil, newError(KindAuthorization, "not authorized")
	}

	var quiz models.Quiz
	if err := s.db.First(&quiz, quizID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "quiz not found")
		}
		return nil, wrapError(KindPersistence, "load quiz", err)
	}

	var existing models.Attempt
	err := s.db.Where("quiz_id = ? AND student_id = ?", quiz.ID, studentID).First(&existing).Error
	if err == nil {
		return nil, newError(KindConflict, "quiz already attempted")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrapError(KindPersistence, "check attempt", err)
	}

	now := time.Now().UTC()
	if now.Before(quiz.StartTime) {
		return nil, newError(KindTiming, "quiz has not started yet")
	}

	attempt := models.Attempt{
		QuizID:    quiz.ID,
		StudentID: studentID,
		StartedAt: now,
	}
	if err := s.db.Create(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, newError(KindConflict, "quiz already attempted")
		}
		return nil, wrapError(KindPersistence, "create attempt", err)
	}

	var questions []models.Question
	if err := s.db.Where("quiz_id = ?", quiz.ID).Order("id").Find(&questions).Error; err != nil {
		return nil, wrapError(KindPersistence, "load questions", err)
	}

	session := &AttemptSession{
		AttemptID: attempt.ID,
		QuizTitle: quiz.Title,
		Duration:  quiz.DurationMinutes,
		Questions: make([]StudentQuestionView, 0, len(questions)),
	}
	for _, q := range questions {
		session.Questions = append(session.Questions, StudentQuestionView{
			ID:      q.ID,
			Text:    q.Text,
			Options: q.Options(),
		})
	}
	return session, nil
}

// SubmitAttempt grades the active attempt and finalizes it. Grading walks
// the quiz's questions as they exist now, not a snapshot from start time.
// The four result fields land in one conditional UPDATE keyed on
// finished=false, so of two concurrent submits exactly one wins; the loser
// sees no active attempt.
func (s *AttemptService) SubmitAttempt(quizID, studentID uint, role models.Role, answers map[string]string) (*SubmitResult, error) {
	if role != models.RoleStudent {
		return nil, newError(KindAuthorization, "not authorized")
	}

	var attempt models.Attempt
	err := s.db.Where("quiz_id = ? AND student_id = ? AND finished = ?", quizID, studentID, false).
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "no active attempt found")
		}
		return nil, wrapError(KindPersistence, "load attempt", err)
	}

	var questions []models.Question
	if err := s.db.Where("quiz_id = ?", quizID).Find(&questions).Error; err != nil {
		return nil, wrapError(KindPersistence, "load questions", err)
	}

	score := scoreAnswers(questions, answers)
	total := len(questions)
	now := time.Now().UTC()

	res := s.db.Model(&models.Attempt{}).
		Where("id = ? AND finished = ?", attempt.ID, false).
		Updates(map[string]interface{}{
			"score":           score,
			"total_questions": total,
			"finished":        true,
			"finished_at":     now,
		})
	if res.Error != nil {
		return nil, wrapError(KindPersistence, "finalize attempt", res.Error)
	}
	if res.RowsAffected == 0 {
		// A concurrent submit finalized the attempt first.
		return nil, newError(KindNotFound, "no active attempt found")
	}

	return &SubmitResult{Score: score, TotalQuestions: total}, nil
}

// scoreAnswers awards one point per question whose submitted answer equals
// the correct key exactly (case-sensitive, single letter). Unanswered and
// wrong answers score zero.
func scoreAnswers(questions []models.Question, answers map[string]string) int {
	score := 0
	for _, q := range questions {
		key := strconv.FormatUint(uint64(q.ID), 10)
		if ans, ok := answers[key]; ok && ans == q.CorrectAnswer {
			score++
		}
	}
	return score
}
