package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/exquiz-backend/internal/config"
	"github.com/stemsi/exquiz-backend/internal/database"
	"github.com/stemsi/exquiz-backend/internal/logger"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/repository"
)

func main() {
	var update bool
	flag.BoolVar(&update, "update", false, "Overwrite existing default quizzes with the built-in definitions")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	quizRepo := repository.NewQuizRepository(pool)

	quizzes := defaultQuizzes()
	fmt.Printf("=== Seeding %d default quizzes ===\n", len(quizzes))

	created, updated := 0, 0
	for i := range quizzes {
		quiz := &quizzes[i]
		quiz.IsCustom = false

		err := quizRepo.CreateQuiz(ctx, quiz)
		switch {
		case err == nil:
			created++
			fmt.Printf("Created %s (%d questions)\n", quiz.ID, len(quiz.Questions))
		case errors.Is(err, repository.ErrDuplicate) && update:
			patch := model.QuizPatch{
				Name:              &quiz.Name,
				Description:       &quiz.Description,
				Questions:         quiz.Questions,
				PointsPerQuestion: &quiz.PointsPerQuestion,
				TimeLimitMinutes:  &quiz.TimeLimitMinutes,
				Randomization:     quiz.Randomization,
				Proctoring:        quiz.Proctoring,
			}
			if _, err := quizRepo.UpdateQuiz(ctx, quiz.ID, patch); err != nil {
				log.Fatal().Err(err).Str("quiz_id", quiz.ID).Msg("Failed to update quiz")
			}
			updated++
			fmt.Printf("Updated %s\n", quiz.ID)
		case errors.Is(err, repository.ErrDuplicate):
			fmt.Printf("Skipped %s (already exists)\n", quiz.ID)
		default:
			log.Fatal().Err(err).Str("quiz_id", quiz.ID).Msg("Failed to seed quiz")
		}
	}

	fmt.Printf("\nSeed completed! Created %d, updated %d of %d quizzes.\n", created, updated, len(quizzes))
}
