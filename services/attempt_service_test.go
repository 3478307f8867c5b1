package services

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"quizverse/models"
)

func TestStartAttemptGuards(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttemptService(db)
	teacher := createUser(t, db, "teacher@example.com", models.RoleTeacher)
	student := createUser(t, db, "student@example.com", models.RoleStudent)

	openQuiz := createQuiz(t, db, teacher.ID, time.Now().Add(-time.Hour))
	futureQuiz := createQuiz(t, db, teacher.ID, time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		quizID uint
		userID uint
		role   models.Role
		want   ErrorKind
	}{
		{"teacher cannot start", openQuiz.ID, teacher.ID, models.RoleTeacher, KindAuthorization},
		{"missing quiz", 9999, student.ID, models.RoleStudent, KindNotFound},
		{"before start time", futureQuiz.ID, student.ID, models.RoleStudent, KindTiming},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StartAttempt(tt.quizID, tt.userID, tt.role)
			wantKind(t, err, tt.want)
		})
	}
}

func TestStartAttemptReturnsQuestionsWithoutAnswers(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttemptService(db)
	teacher := createUser(t, db, "teacher@example.com", models.RoleTeacher)
	student := createUser(t, db, "student@example.com", models.RoleStudent)
	quiz := createQuiz(t, db, teacher.ID, time.Now().Add(-time.Minute))
	createQuestion(t, db, quiz.ID, "q1", "A")
	createQuestion(t, db, quiz.ID, "q2", "B")

	session, err := svc.StartAttempt(quiz.ID, student.ID, models.RoleStudent)
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	if session.AttemptID == 0 {
		t.Fatal("expected attempt id")
	}
	if session.Duration != quiz.DurationMinutes {
		t.Fatalf("duration = %d, want %d", session.Duration, quiz.DurationMinutes)
	}
	if len(session.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(session.Questions))
	}
	for _, q := range session.Questions {
		if len(q.Options) != 4 {
			t.Fatalf("question %d has %d options, want 4", q.ID, len(q.Options))
		}
	}

	var attempt models.Attempt
	if err := db.First(&attempt, session.AttemptID).Error; err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if attempt.Finished {
		t.Fatal("new attempt must be unfinished")
	}
	if attempt.Score != nil || attempt.TotalQuestions != nil {
		t.Fatal("new attempt must have no score")
	}
}

func TestStartAttemptIsOneShot(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttemptService(db)
	teacher := createUser(t, db, "teacher@example.com", models.RoleTeacher)
	student := createUser(t, db, "student@example.com", models.RoleStudent)
	quiz := createQuiz(t, db, teacher.ID, time.Now().Add(-time.Minute))
	createQuestion(t, db, quiz.ID, "q1", "A")

	if _, err := svc.StartAttempt(quiz.ID, student.ID, models.RoleStudent); err != nil {
		t.Fatalf("first start: %v", err)
	}

	// The unfinished attempt already blocks a retry: it is a ticket, not a
	// resumable session.
	_, err := svc.StartAttempt(quiz.ID, student.ID, models.RoleStudent)
	wantKind(t, err, KindConflict)

	// Finishing changes nothing; the pair is burned for good.
	if _, err := svc.SubmitAttempt(quiz.ID, student.ID, models.RoleStudent, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err = svc.StartAttempt(quiz.ID, student.ID, models.RoleStudent)
	wantKind(t, err, KindConflict)
}

func TestConcurrentStartsCreateOneAttempt(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttemptService(db)
	teacher := createUser(t, db, "teacher@example.com", models.RoleTeacher)
	student := createUser(t, db, "student@example.com", models.RoleStudent)
	quiz := createQuiz(t, db, teacher.ID, time.Now().Add(-time.Minute))

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.StartAttempt(quiz.ID, student.ID, models.RoleStudent)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if KindOf(err) != KindConflict {
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("successful starts = %d, want 1", succeeded)
	}

	var count int64
	db.Model(&models.Attempt{}).Where("quiz_id = ? AND student_id = ?", quiz.ID, student.ID).Count(&count)
	if count != 1 {
		t.Fatalf("attempt rows = %d, want 1", count)
	}
}

func TestSubmitAttemptScoring(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttemptService(db)
	teacher := createUser(t, db, "teacher@example.com", models.RoleTeacher)
	student := createUser(t, db, "student@example.com", models.RoleStudent)
	quiz := createQuiz(t, db, teacher.ID, time.Now().Add(-time.Minute))

	keys := []string{"A", "B", "C", "D", "A"}
	questions := make([]*models.Question, len(keys))
	for i, key := range keys {
		questions[i] = createQuestion(t, db, quiz.ID, "q", key)
	}

	if _, err := svc.StartAttempt(quiz.ID, student.ID, models.RoleStudent); err != nil {
		t.Fatalf("start: %v", err)
	}

	answers := map[string]string{
		strconv.Itoa(int(questions[0].ID)): "A", // correct
		strconv.Itoa(int(questions[1].ID)): "X", // wrong
		strconv.Itoa(int(questions[2].ID)): "C", // correct
		// questions[3] unanswered
		strconv.Itoa(int(questions[4].ID)): "A", // correct
	}
	result, err := svc.SubmitAttempt(quiz.ID, student.ID, models.RoleStudent, answers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 3 || result.TotalQuestions != 5 {
		t.Fatalf("got %d/%d, want 3/5", result.Score, result.TotalQuestions)
	}

	var attempt models.Attempt
	if err := db.Where("quiz_id = ? AND student_id = ?", quiz.ID, student.ID).First(&attempt).Error; err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if !attempt.Finished || attempt.FinishedAt == nil {
		t.Fatal("attempt not finalized")
	}
	if attempt.Score == nil || *attempt.Score != 3 {
		t.Fatalf("stored score = %v, want 3", attempt.Score)
	}
	if attempt.TotalQuestions == nil || *attempt.TotalQuestions != 5 {
		t.Fatalf("stored total = %v, want 5", attempt.TotalQuestions)
	}
}

func TestSubmitAttemptNotIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttemptService(db)
	teacher := createUser(t, db, "teacher@example.com", models.RoleTeacher)
	student := createUser(t, db, "student@example.com", models.RoleStudent)
	quiz := createQuiz(t, db, teacher.ID, time.Now().Add(-time.Minute))
	q := createQuestion(t, db, quiz.ID, "q1", "A")

	if _, err := svc.StartAttempt(quiz.ID, student.ID, models.RoleStudent); err != nil {
		t.Fatalf("start: %v", err)
	}
	answers := map[string]string{strconv.Itoa(int(q.ID)): "A"}
	if _, err := svc.SubmitAttempt(quiz.ID, student.ID, models.RoleStudent, answers); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// Finished attempts are invisible to the active-attempt lookup, so a
	// second submit fails and changes nothing.
	_, err := svc.SubmitAttempt(quiz.ID, student.ID, models.RoleStudent, map[string]string{})
	wantKind(t, err, KindNotFound)

	var attempt models.Attempt
	db.Where("quiz_id = ? AND student_id = ?", quiz.ID, student.ID).First(&attempt)
	if attempt.Score == nil || *attempt.Score != 1 {
		t.Fatalf("score changed after failed resubmit: %v", attempt.Score)
	}
}

func TestSubmitWithoutStart(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttemptService(db)
	teacher := createUser(t, db, "teacher@example.com", models.RoleTeacher)
	student := createUser(t, db, "student@example.com", models.RoleStudent)
	quiz := createQuiz(t, db, teacher.ID, time.Now().Add(-time.Minute))

	_, err := svc.SubmitAttempt(quiz.ID, student.ID, models.RoleStudent, nil)
	wantKind(t, err, KindNotFound)
}

func TestGradingUsesQuestionsAtGradingTime(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttemptService(db)
	teacher := createUser(t, db, "teacher@example.com", models.RoleTeacher)
	student := createUser(t, db, "student@example.com", models.RoleStudent)
	quiz := createQuiz(t, db, teacher.ID, time.Now().Add(-time.Minute))
	q1 := createQuestion(t, db, quiz.ID, "q1", "A")

	if _, err := svc.StartAttempt(quiz.ID, student.ID, models.RoleStudent); err != nil {
		t.Fatalf("start: %v", err)
	}

	// A question added mid-attempt counts toward the total even though the
	// student never saw it.
	createQuestion(t, db, quiz.ID, "q2", "B")

	result, err := svc.SubmitAttempt(quiz.ID, student.ID, models.RoleStudent,
		map[string]string{strconv.Itoa(int(q1.ID)): "A"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 1 || result.TotalQuestions != 2 {
		t.Fatalf("got %d/%d, want 1/2", result.Score, result.TotalQuestions)
	}
}

func TestScoreAnswers(t *testing.T) {
	questions := []models.Question{
		{ID: 1, CorrectAnswer: "A"},
		{ID: 2, CorrectAnswer: "B"},
		{ID: 3, CorrectAnswer: "C"},
	}
	tests := []struct {
		name    string
		answers map[string]string
		want    int
	}{
		{"all correct", map[string]string{"1": "A", "2": "B", "3": "C"}, 3},
		{"partial", map[string]string{"1": "A", "2": "D"}, 1},
		{"empty", nil, 0},
		{"case sensitive", map[string]string{"1": "a", "2": "b", "3": "c"}, 0},
		{"unknown question ids ignored", map[string]string{"99": "A"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreAnswers(questions, tt.answers); got != tt.want {
				t.Errorf("scoreAnswers() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStudentQuizzesIncludesAttemptState(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttemptService(db)
	teacher := createUser(t, db, "teacher@example.com", models.RoleTeacher)
	student := createUser(t, db, "student@example.com", models.RoleStudent)
	attempted := createQuiz(t, db, teacher.ID, time.Now().Add(-time.Hour))
	createQuiz(t, db, teacher.ID, time.Now().Add(time.Hour))
	q := createQuestion(t, db, attempted.ID, "q1", "A")

	if _, err := svc.StartAttempt(attempted.ID, student.ID, models.RoleStudent); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.SubmitAttempt(attempted.ID, student.ID, models.RoleStudent,
		map[string]string{strconv.Itoa(int(q.ID)): "A"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	list, err := svc.StudentQuizzes(student.ID, models.RoleStudent)
	if err != nil {
		t.Fatalf("student quizzes: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("quizzes = %d, want 2", len(list))
	}

	var attemptedEntry, freshEntry *StudentQuizSummary
	for i := range list {
		switch list[i].ID {
		case attempted.ID:
			attemptedEntry = &list[i]
		default:
			freshEntry = &list[i]
		}
	}
	if attemptedEntry == nil || attemptedEntry.Attempt == nil {
		t.Fatal("expected attempt info on attempted quiz")
	}
	if !attemptedEntry.Attempt.Finished || attemptedEntry.Attempt.Score == nil || *attemptedEntry.Attempt.Score != 1 {
		t.Fatalf("unexpected attempt info: %+v", attemptedEntry.Attempt)
	}
	if freshEntry == nil || freshEntry.Attempt != nil {
		t.Fatal("expected nil attempt on untouched quiz")
	}

	_, err = svc.StudentQuizzes(teacher.ID, models.RoleTeacher)
	wantKind(t, err, KindAuthorization)
}
