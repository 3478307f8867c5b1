package cli

import (
	"log"

	"quizverse/config"
	"quizverse/models"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
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
			log.Println("migrations applied")
			return nil
		},
	}
}

// autoMigrate creates the entity tables, including the composite unique
// index on (quiz_id, student_id) that backs the one-attempt guarantee.
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Quiz{},
		&models.Question{},
		&models.Attempt{},
		&models.ProctorLog{},
	)
}
