package main

import "github.com/stemsi/exquiz-backend/internal/model"

func q(text string, correct int, difficulty model.Difficulty, options ...string) model.Question {
	return model.Question{Text: text, Options: options, Correct: correct, Difficulty: difficulty}
}

func defaultQuizzes() []model.Quiz {
	limit := 5
	return []model.Quiz{
		{
			ID:                "javascript",
			Name:              "JavaScript Fundamentals",
			Description:       "Core language semantics: types, scope and the event loop.",
			PointsPerQuestion: 1,
			TimeLimitMinutes:  15,
			Randomization:     &model.RandomizationConfig{RandomizeQuestions: true, RandomizeOptions: true, QuestionLimit: &limit},
			Proctoring:        &model.ProctoringConfig{Enabled: true, Level: model.ProctoringLevelStandard},
			Questions: []model.Question{
				q("What does typeof null return?", 1, model.DifficultyEasy, "\"null\"", "\"object\"", "\"undefined\"", "\"number\""),
				q("Which keyword declares a block-scoped constant?", 2, model.DifficultyEasy, "var", "let", "const", "static"),
				q("What is the result of 0.1 + 0.2 === 0.3?", 1, model.DifficultyMedium, "true", "false", "TypeError", "NaN"),
				q("Which runs first: a resolved Promise callback or a setTimeout(fn, 0) callback?", 0, model.DifficultyMedium, "The Promise callback", "The setTimeout callback", "They run in random order", "Neither runs"),
				q("What does [] + {} evaluate to?", 3, model.DifficultyHard, "0", "\"{}\"", "NaN", "\"[object Object]\""),
				q("Which method creates a shallow copy of an array?", 0, model.DifficultyEasy, "slice()", "splice()", "push()", "reduce()"),
				q("What does the 'this' keyword refer to inside an arrow function?", 2, model.DifficultyHard, "The global object", "The function itself", "The enclosing lexical this", "undefined, always"),
			},
		},
		{
			ID:                "python",
			Name:              "Python Basics",
			Description:       "Data structures, mutability and common built-ins.",
			PointsPerQuestion: 1,
			TimeLimitMinutes:  15,
			Randomization:     &model.RandomizationConfig{RandomizeQuestions: true, RandomizeOptions: true},
			Proctoring:        &model.ProctoringConfig{Enabled: true, Level: model.ProctoringLevelBasic},
			Questions: []model.Question{
				q("Which of these types is immutable?", 2, model.DifficultyEasy, "list", "dict", "tuple", "set"),
				q("What does len({'a': 1, 'b': 2}) return?", 1, model.DifficultyEasy, "1", "2", "4", "TypeError"),
				q("What is the output of print(3 // 2)?", 0, model.DifficultyMedium, "1", "1.5", "2", "1.0"),
				q("Which statement about default mutable arguments is true?", 3, model.DifficultyHard, "They are copied on every call", "They are forbidden", "They are evaluated lazily", "They are shared between calls"),
				q("Which built-in pairs elements from two iterables?", 1, model.DifficultyEasy, "map", "zip", "enumerate", "filter"),
			},
		},
		{
			ID:                "sql",
			Name:              "SQL Essentials",
			Description:       "Joins, grouping and NULL handling.",
			PointsPerQuestion: 2,
			TimeLimitMinutes:  20,
			Proctoring:        &model.ProctoringConfig{Enabled: true, Level: model.ProctoringLevelAdvanced, StrictMode: true},
			Questions: []model.Question{
				q("Which join returns only matching rows from both tables?", 0, model.DifficultyEasy, "INNER JOIN", "LEFT JOIN", "FULL OUTER JOIN", "CROSS JOIN"),
				q("What does NULL = NULL evaluate to?", 2, model.DifficultyMedium, "TRUE", "FALSE", "NULL", "An error"),
				q("Which clause filters groups after aggregation?", 1, model.DifficultyMedium, "WHERE", "HAVING", "ORDER BY", "LIMIT"),
				q("COUNT(column) differs from COUNT(*) because it", 3, model.DifficultyHard, "is faster", "counts distinct values", "requires GROUP BY", "skips NULLs"),
			},
		},
	}
}
