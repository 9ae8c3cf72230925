package domain

import "time"

// UserProgress is the per-user XP, level and streak record.
type UserProgress struct {
	UserID           string    `json:"userId"`
	TotalXP          int       `json:"totalXp"`
	Level            int       `json:"level"`
	LevelTitle       string    `json:"levelTitle"`
	CurrentStreak    int       `json:"currentStreak"`
	LongestStreak    int       `json:"longestStreak"`
	LessonsCompleted int       `json:"lessonsCompleted"`
	LastActiveAt     time.Time `json:"lastActiveAt"`
}

// StreakLog records one check-in for a user on a calendar day.
type StreakLog struct {
	UserID    string    `json:"userId"`
	Date      time.Time `json:"date"`
	BonusXP   int       `json:"bonusXp"`
	CreatedAt time.Time `json:"createdAt"`
}

// Badge is a catalog entry awarded once per user when any of its requirements is met.
type Badge struct {
	ID           string       `json:"id"`
	Slug         string       `json:"slug"`
	Name         string       `json:"name"`
	Category     string       `json:"category"`
	Requirements Requirements `json:"requirement"`
	XPBonus      int          `json:"xpBonus"`
}

// UserBadge is the award record; its existence means the badge is earned.
type UserBadge struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	BadgeID  string    `json:"badgeId"`
	EarnedAt time.Time `json:"earnedAt"`
}

// EarnedBadge joins an award with its catalog entry.
type EarnedBadge struct {
	Badge    Badge     `json:"badge"`
	EarnedAt time.Time `json:"earnedAt"`
}

// GameScore is one submitted mini-game attempt. Rows are append-only.
type GameScore struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	GameType  string         `json:"gameType"`
	Score     int            `json:"score"`
	Level     *int           `json:"level,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Scope selects a leaderboard: a game type and optionally one level of it.
type Scope struct {
	GameType string
	Level    *int
}

// Matches reports whether a score row belongs to the scope.
func (s Scope) Matches(score GameScore) bool {
	if score.GameType != s.GameType {
		return false
	}
	if s.Level == nil {
		return true
	}
	return score.Level != nil && *score.Level == *s.Level
}

// LeaderboardEntry is one ranked row of a leaderboard page.
type LeaderboardEntry struct {
	Rank          int       `json:"rank"`
	ScoreID       string    `json:"scoreId"`
	UserID        string    `json:"userId"`
	Score         int       `json:"score"`
	Level         *int      `json:"level,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	IsCurrentUser bool      `json:"isCurrentUser"`
}

// LeaderboardPage is a paginated leaderboard view.
type LeaderboardPage struct {
	GameType string             `json:"gameType"`
	Level    *int               `json:"level,omitempty"`
	Entries  []LeaderboardEntry `json:"entries"`
	Total    int                `json:"total"`
}

// PersonalBest summarises a user's record for one game type.
type PersonalBest struct {
	GameType      string    `json:"gameType"`
	BestScore     int       `json:"bestScore"`
	Level         *int      `json:"level,omitempty"`
	AchievedAt    time.Time `json:"achievedAt"`
	TotalAttempts int       `json:"totalAttempts"`
}

// Question is a single quiz question with its expected answer.
type Question struct {
	ID            string `json:"id"`
	Prompt        string `json:"prompt,omitempty"`
	CorrectAnswer string `json:"correctAnswer"`
	Explanation   string `json:"explanation,omitempty"`
}

// Quiz is the ordered question list attached to a lesson.
type Quiz struct {
	Questions    []Question `json:"questions"`
	PassingScore *int       `json:"passingScore,omitempty"` // defaults to 70 when nil
}

// Lesson is the read-only lesson content the engine needs.
type Lesson struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	XPReward int    `json:"xpReward"`
	Quiz     *Quiz  `json:"quiz,omitempty"`
}

// LessonCompletion marks the first time a user passed a lesson.
type LessonCompletion struct {
	UserID      string    `json:"userId"`
	LessonID    string    `json:"lessonId"`
	CompletedAt time.Time `json:"completedAt"`
}

// Answer is one submitted quiz answer.
type Answer struct {
	QuestionID     string `json:"questionId"`
	SelectedAnswer string `json:"selectedAnswer"`
}

// QuestionResult is the graded outcome for a single answer.
type QuestionResult struct {
	QuestionID     string `json:"questionId"`
	IsCorrect      bool   `json:"isCorrect"`
	SelectedAnswer string `json:"selectedAnswer"`
	CorrectAnswer  string `json:"correctAnswer"`
	Explanation    string `json:"explanation,omitempty"`
}

// QuizResult summarises a graded quiz submission.
type QuizResult struct {
	LessonID       string           `json:"lessonId"`
	Score          int              `json:"score"`
	Passed         bool             `json:"passed"`
	TotalQuestions int              `json:"totalQuestions"`
	CorrectAnswers int              `json:"correctAnswers"`
	XPBonus        int              `json:"xpBonus"`
	Results        []QuestionResult `json:"results"`
}
