package cli

import (
	"log"
	"time"

	"quizverse/config"
	"quizverse/models"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert a demo teacher, student and quiz",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := config.InitDB(cfg)
			if err != nil {
				return err
			}
			if err := autoMigrate(db); err != nil {
				return err
			}
			return seedDemoData(db)
		},
	}
}

func seedDemoData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("database not empty, skipping seed")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		teacher, err := seedUser(tx, "teacher@example.com", "teacher123", models.RoleTeacher)
		if err != nil {
			return err
		}
		if _, err := seedUser(tx, "student@example.com", "student123", models.RoleStudent); err != nil {
			return err
		}

		quiz := models.Quiz{
			Title:           "Go Basics",
			StartTime:       time.Now().UTC().Truncate(time.Minute),
			DurationMinutes: 30,
			TeacherID:       teacher.ID,
		}
		if err := tx.Create(&quiz).Error; err != nil {
			return err
		}

		questions := []models.Question{
			{
				QuizID: quiz.ID, Text: "Which keyword declares a new variable with inferred type?",
				OptionA: "var", OptionB: ":=", OptionC: "let", OptionD: "def",
				CorrectAnswer: "B",
			},
			{
				QuizID: quiz.ID, Text: "What does a nil map lookup return?",
				OptionA: "panic", OptionB: "compile error", OptionC: "the zero value", OptionD: "undefined",
				CorrectAnswer: "C",
			},
			{
				QuizID: quiz.ID, Text: "Which builtin starts a goroutine?",
				OptionA: "go", OptionB: "run", OptionC: "spawn", OptionD: "async",
				CorrectAnswer: "A",
			},
		}
		for i := range questions {
			if err := tx.Create(&questions[i]).Error; err != nil {
				return err
			}
		}

		log.Printf("seeded demo quiz %q with %d questions", quiz.Title, len(questions))
		return nil
	})
}

func seedUser(tx *gorm.DB, email, password string, role models.Role) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := models.User{Email: email, PasswordHash: string(hash), Role: role}
	if err := tx.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
