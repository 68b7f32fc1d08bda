package achievement

// DefaultCatalog returns the built-in GAMILIT achievement set.
// Used to seed an empty store; deployments extend it through the
// definition repository.
func DefaultCatalog() []*Definition {
	specs := []NewDefinitionParams{
		{
			ID:          "first_steps",
			Name:        "First Steps",
			Description: "Complete your first exercise",
			Category:    CategoryProgress,
			Condition:   ProgressCondition{MinExercises: 1},
			MaxProgress: 1,
			Reward:      Reward{XP: 25, Coins: 10},
		},
		{
			ID:          "exercise_apprentice",
			Name:        "Apprentice Reader",
			Description: "Complete 10 exercises",
			Category:    CategoryProgress,
			Condition:   ProgressCondition{MinExercises: 10},
			MaxProgress: 10,
			Reward:      Reward{XP: 100, Coins: 50},
		},
		{
			ID:          "module_marathon",
			Name:        "Module Marathon",
			Description: "Complete 5 modules",
			Category:    CategoryProgress,
			Condition:   ProgressCondition{MinModules: 5},
			MaxProgress: 5,
			Reward:      Reward{XP: 250, Coins: 150},
		},
		{
			ID:          "week_streak",
			Name:        "Seven in a Row",
			Description: "Stay active 7 days in a row",
			Category:    CategoryStreak,
			Condition:   StreakCondition{MinStreak: 7},
			MaxProgress: 7,
			IsRepeatable: true,
			Reward:       Reward{XP: 150, Coins: 75},
		},
		{
			ID:          "perfect_five",
			Name:        "Perfectionist",
			Description: "Score 100 on 5 exercises",
			Category:    CategoryMastery,
			Condition:   ScoreCondition{MinPerfectScores: 5},
			MaxProgress: 5,
			Reward:      Reward{XP: 200, Coins: 100},
		},
		{
			ID:          "sharp_mind",
			Name:        "Sharp Mind",
			Description: "Keep an average score of 90 over 20 exercises",
			Category:    CategoryMastery,
			Condition:   ScoreCondition{MinAverageScore: 90, MinExercises: 20},
			MaxProgress: 1,
			Reward:      Reward{XP: 300, Coins: 200},
		},
		{
			ID:          "rank_nacom",
			Name:        "Rise of the Nacom",
			Description: "Reach the Nacom rank",
			Category:    CategoryRank,
			Condition:   RankCondition{MinTier: 1},
			MaxProgress: 1,
			Reward:      Reward{XP: 100, Coins: 50},
		},
		{
			ID:          "coin_collector",
			Name:        "Coin Collector",
			Description: "Earn 1000 ML Coins in total",
			Category:    CategoryEconomy,
			Condition:   CurrencyCondition{MinCoinsEarned: 1000},
			MaxProgress: 1000,
			Reward:      Reward{XP: 150, Coins: 100},
		},
		{
			ID:          "night_owl",
			Name:        "Night Owl",
			Description: "???",
			Category:    CategoryStreak,
			Condition:   GenericCondition{Stat: StatMaxStreak, Min: 30},
			MaxProgress: 30,
			IsSecret:    true,
			Reward:      Reward{XP: 500, Coins: 300},
		},
	}

	catalog := make([]*Definition, 0, len(specs))
	for _, spec := range specs {
		def, err := NewDefinition(spec)
		if err != nil {
			// The built-in catalog is statically valid.
			panic(err)
		}
		catalog = append(catalog, def)
	}
	return catalog
}
