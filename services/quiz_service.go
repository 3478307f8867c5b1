package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"quizverse/models"

	"gorm.io/gorm"
)

// QuizService covers the teacher-side operations: quiz registry, question
// bank (manual add and CSV import) and the dashboard detail view.
type QuizService struct {
	db *gorm.DB
}

func NewQuizService(db *gorm.DB) *QuizService {
	return &QuizService{db: db}
}

type CreateQuizRequest struct {
	Title           string `json:"title" binding:"required"`
	StartTime       string `json:"startTime" binding:"required"`
	DurationMinutes int    `json:"durationMinutes"`
}

type AddQuestionRequest struct {
	Text          string            `json:"text" binding:"required"`
	Options       map[string]string `json:"options" binding:"required"`
	CorrectAnswer string            `json:"correctAnswer" binding:"required"`
}

type QuizSummary struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	StartTime       time.Time `json:"startTime"`
	DurationMinutes int       `json:"durationMinutes"`
	QuestionCount   int       `json:"questionCount"`
}

// QuestionView is the teacher-facing question shape; it carries the correct
// answer and must never be served to students.
type QuestionView struct {
	ID            uint              `json:"id"`
	Text          string            `json:"text"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correctAnswer"`
}

type AttemptResult struct {
	StudentEmail   string     `json:"studentEmail"`
	Score          *int       `json:"score"`
	TotalQuestions *int       `json:"totalQuestions"`
	FinishedAt     *time.Time `json:"finishedAt"`
}

type ProctorEventView struct {
	StudentEmail   string    `json:"studentEmail"`
	EventType      string    `json:"eventType"`
	QuestionNumber int       `json:"questionNumber"`
	Timestamp      time.Time `json:"timestamp"`
}

type QuizDetail struct {
	ID          uint               `json:"id"`
	Title       string             `json:"title"`
	Questions   []QuestionView     `json:"questions"`
	Results     []AttemptResult    `json:"results"`
	ProctorLogs []ProctorEventView `json:"proctorLogs"`
}

// startTimeLayouts accepts RFC3339 plus the second-less shapes that
// datetime-local form inputs produce.
var startTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func parseStartTime(raw string) (time.Time, error) {
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable start time %q", raw)
}

func (s *QuizService) CreateQuiz(teacherID uint, role models.Role, req *CreateQuizRequest) (*models.Quiz, error) {
	if role != models.RoleTeacher {
		return nil, newError(KindAuthorization, "not authorized")
	}

	startTime, err := parseStartTime(req.StartTime)
	if err != nil {
		return nil, wrapError(KindValidation, "invalid start time", err)
	}
	if req.DurationMinutes <= 0 {
		return nil, newError(KindValidation, "duration must be a positive number of minutes")
	}

	quiz := models.Quiz{
		Title:           req.Title,
		StartTime:       startTime,
		DurationMinutes: req.DurationMinutes,
		TeacherID:       teacherID,
	}
	if err := s.db.Create(&quiz).Error; err != nil {
		return nil, wrapError(KindPersistence, "create quiz", err)
	}
	return &quiz, nil
}

// ListQuizzes returns the teacher's own quizzes with derived question counts.
func (s *QuizService) ListQuizzes(teacherID uint, role models.Role) ([]QuizSummary, error) {
	if role != models.RoleTeacher {
		return nil, newError(KindAuthorization, "not authorized")
	}

	var quizzes []models.Quiz
	if err := s.db.Where("teacher_id = ?", teacherID).Order("start_time").Find(&quizzes).Error; err != nil {
		return nil, wrapError(KindPersistence, "list quizzes", err)
	}

	summaries := make([]QuizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		var count int64
		if err := s.db.Model(&models.Question{}).Where("quiz_id = ?", q.ID).Count(&count).Error; err != nil {
			return nil, wrapError(KindPersistence, "count questions", err)
		}
		summaries = append(summaries, QuizSummary{
			ID:              q.ID,
			Title:           q.Title,
			StartTime:       q.StartTime,
			DurationMinutes: q.DurationMinutes,
			QuestionCount:   int(count),
		})
	}
	return summaries, nil
}

// GetQuizDetail composes the owning teacher's dashboard view: the full
// question list (answers included), every attempt joined with the student's
// identity, and the proctor-event timeline ordered by timestamp. Students may
// view too; their answer-free path is StartAttempt, not this.
func (s *QuizService) GetQuizDetail(quizID, requesterID uint, role models.Role) (*QuizDetail, error) {
	var quiz models.Quiz
	if err := s.db.First(&quiz, quizID).Error; err != nil {
		return nil, newError(KindNotFound, "quiz not found")
	}
	if role == models.RoleTeacher && quiz.TeacherID != requesterID {
		return nil, newError(KindAuthorization, "not authorized to view this quiz")
	}

	var questions []models.Question
	if err := s.db.Where("quiz_id = ?", quiz.ID).Order("id").Find(&questions).Error; err != nil {
		return nil, wrapError(KindPersistence, "load questions", err)
	}

	var attempts []models.Attempt
	if err := s.db.Where("quiz_id = ?", quiz.ID).Preload("Student").Find(&attempts).Error; err != nil {
		return nil, wrapError(KindPersistence, "load attempts", err)
	}

	var logs []models.ProctorLog
	if err := s.db.Where("quiz_id = ?", quiz.ID).Preload("Student").Find(&logs).Error; err != nil {
		return nil, wrapError(KindPersistence, "load proctor logs", err)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].Timestamp.Before(logs[j].Timestamp) })

	detail := &QuizDetail{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Questions:   make([]QuestionView, 0, len(questions)),
		Results:     make([]AttemptResult, 0, len(attempts)),
		ProctorLogs: make([]ProctorEventView, 0, len(logs)),
	}
	for _, q := range questions {
		detail.Questions = append(detail.Questions, QuestionView{
			ID:            q.ID,
			Text:          q.Text,
			Options:       q.Options(),
			CorrectAnswer: q.CorrectAnswer,
		})
	}
	for _, a := range attempts {
		detail.Results = append(detail.Results, AttemptResult{
			StudentEmail:   a.Student.Email,
			Score:          a.Score,
			TotalQuestions: a.TotalQuestions,
			FinishedAt:     a.FinishedAt,
		})
	}
	for _, l := range logs {
		detail.ProctorLogs = append(detail.ProctorLogs, ProctorEventView{
			StudentEmail:   l.Student.Email,
			EventType:      l.EventType,
			QuestionNumber: l.QuestionNumber,
			Timestamp:      l.Timestamp,
		})
	}
	return detail, nil
}

// DeleteQuiz removes a quiz and everything it owns as one transaction:
// questions, attempts, proctor logs, then the quiz row itself. A failure at
// any step rolls the whole delete back so no orphaned children survive.
func (s *QuizService) DeleteQuiz(quizID, requesterID uint, role models.Role) error {
	if role != models.RoleTeacher {
		return newError(KindAuthorization, "not authorized")
	}

	var quiz models.Quiz
	if err := s.db.First(&quiz, quizID).Error; err != nil {
		return newError(KindNotFound, "quiz not found")
	}
	if quiz.TeacherID != requesterID {
		return newError(KindAuthorization, "not authorized to delete this quiz")
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, del := range []error{
		tx.Where("quiz_id = ?", quiz.ID).Delete(&models.Question{}).Error,
		tx.Where("quiz_id = ?", quiz.ID).Delete(&models.Attempt{}).Error,
		tx.Where("quiz_id = ?", quiz.ID).Delete(&models.ProctorLog{}).Error,
		tx.Delete(&models.Quiz{}, quiz.ID).Error,
	} {
		if del != nil {
			tx.Rollback()
			return wrapError(KindPersistence, "delete quiz", del)
		}
	}
	if err := tx.Commit().Error; err != nil {
		return wrapError(KindPersistence, "delete quiz", err)
	}
	return nil
}

func (s *QuizService) AddQuestion(quizID, requesterID uint, role models.Role, req *AddQuestionRequest) (*models.Question, error) {
	quiz, err := s.ownedQuiz(quizID, requesterID, role)
	if err != nil {
		return nil, err
	}

	for _, key := range models.OptionKeys {
		if _, ok := req.Options[key]; !ok {
			return nil, newError(KindValidation, "missing option field "+key)
		}
	}
	if !validCorrectKey(req.CorrectAnswer) {
		return nil, newError(KindValidation, "correctAnswer must be one of A, B, C, D")
	}

	question := models.Question{
		QuizID:        quiz.ID,
		Text:          req.Text,
		OptionA:       req.Options["A"],
		OptionB:       req.Options["B"],
		OptionC:       req.Options["C"],
		OptionD:       req.Options["D"],
		CorrectAnswer: req.CorrectAnswer,
	}
	if err := s.db.Create(&question).Error; err != nil {
		return nil, wrapError(KindPersistence, "create question", err)
	}
	return &question, nil
}

// csvColumns are the required header columns of an import file.
var csvColumns = []string{"question_text", "option_a", "option_b", "option_c", "option_d", "correct_answer"}

// ImportQuestions ingests a CSV of questions all-or-nothing: the first row
// with a missing column or an out-of-range correct_answer aborts the whole
// import and commits zero questions. Non-UTF-8 input is an encoding failure,
// reported distinctly so the caller can tell a bad file from a bad row.
func (s *QuizService) ImportQuestions(quizID, requesterID uint, role models.Role, r io.Reader) (int, error) {
	quiz, err := s.ownedQuiz(quizID, requesterID, role)
	if err != nil {
		return 0, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return 0, wrapError(KindValidation, "read upload", err)
	}
	if !utf8.Valid(data) {
		return 0, newError(KindEncoding, "the file is not UTF-8 encoded; re-save the CSV as UTF-8")
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, wrapError(KindValidation, "read CSV header", err)
	}
	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		// Spreadsheet exports often prepend a UTF-8 BOM to the first header cell.
		colIndex[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	added := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			tx.Rollback()
			return 0, wrapError(KindValidation, "malformed CSV row", err)
		}

		fields := make(map[string]string, len(csvColumns))
		for _, col := range csvColumns {
			idx, ok := colIndex[col]
			if !ok || idx >= len(row) {
				tx.Rollback()
				return 0, newError(KindValidation, "missing columns in CSV")
			}
			fields[col] = row[idx]
		}

		correct := strings.ToUpper(strings.TrimSpace(fields["correct_answer"]))
		if !validCorrectKey(correct) {
			tx.Rollback()
			return 0, newError(KindValidation, fmt.Sprintf("invalid correct_answer value: %s", fields["correct_answer"]))
		}

		question := models.Question{
			QuizID:        quiz.ID,
			Text:          fields["question_text"],
			OptionA:       fields["option_a"],
			OptionB:       fields["option_b"],
			OptionC:       fields["option_c"],
			OptionD:       fields["option_d"],
			CorrectAnswer: correct,
		}
		if err := tx.Create(&question).Error; err != nil {
			tx.Rollback()
			return 0, wrapError(KindPersistence, "create question", err)
		}
		added++
	}

	if err := tx.Commit().Error; err != nil {
		return 0, wrapError(KindPersistence, "commit import", err)
	}
	return added, nil
}

// OwnsQuiz reports whether the requester is the owning teacher; the live
// proctor feed gates its WebSocket subscriptions on this.
func (s *QuizService) OwnsQuiz(quizID, requesterID uint, role models.Role) error {
	_, err := s.ownedQuiz(quizID, requesterID, role)
	return err
}

func (s *QuizService) ownedQuiz(quizID, requesterID uint, role models.Role) (*models.Quiz, error) {
	if role != models.RoleTeacher {
		return nil, newError(KindAuthorization, "not authorized")
	}
	var quiz models.Quiz
	if err := s.db.First(&quiz, quizID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "quiz not found")
		}
		return nil, wrapError(KindPersistence, "load quiz", err)
	}
	if quiz.TeacherID != requesterID {
		return nil, newError(KindAuthorization, "not authorized for this quiz")
	}
	return &quiz, nil
}

func validCorrectKey(key string) bool {
	for _, k := range models.OptionKeys {
		if key == k {
			return true
		}
	}
	return false
}
