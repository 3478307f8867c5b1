package services

import (
	"testing"
	"time"

	"quizverse/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A single connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Quiz{},
		&models.Question{},
		&models.Attempt{},
		&models.ProctorLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	user := models.User{Email: email, PasswordHash: "x", Role: role}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

func createQuiz(t *testing.T, db *gorm.DB, teacherID uint, startTime time.Time) *models.Quiz {
	t.Helper()
	quiz := models.Quiz{
		Title:           "Test Quiz",
		StartTime:       startTime.UTC(),
		DurationMinutes: 30,
		TeacherID:       teacherID,
	}
	if err := db.Create(&quiz).Error; err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	return &quiz
}

func createQuestion(t *testing.T, db *gorm.DB, quizID uint, text, correct string) *models.Question {
	t.Helper()
	question := models.Question{
		QuizID:        quizID,
		Text:          text,
		OptionA:       "option a",
		OptionB:       "option b",
		OptionC:       "option c",
		OptionD:       "option d",
		CorrectAnswer: correct,
	}
	if err := db.Create(&question).Error; err != nil {
		t.Fatalf("create question: %v", err)
	}
	return &question
}

func wantKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}
