package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Handle identifies one tracked account on the achievement service.
// Handles are case-sensitive and unique within a roster.
type Handle string

type ProgressStatus int

const (
	StatusOK ProgressStatus = iota
	StatusFetchFailed
)

func (s ProgressStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFetchFailed:
		return "fetch_failed"
	default:
		return "unknown"
	}
}

// GameInfo is the title metadata shared by every user of a leaderboard.
type GameInfo struct {
	Title     string `json:"Title"`
	ImageIcon string `json:"ImageIcon"`
}

// Valid reports whether both the title and the icon are set.
func (g GameInfo) Valid() bool {
	return g.Title != "" && g.ImageIcon != ""
}

// UserProgress is the normalized progress of one user for one game.
type UserProgress struct {
	Handle                Handle
	TotalAchievements     uint
	CompletedAchievements uint
	// CompletionPercentage is in [0, 100] rounded to 2 decimal places, 0 when TotalAchievements is 0.
	CompletionPercentage decimal.Decimal
	Status               ProgressStatus
}

// Result is the outcome of fetching and computing one user's progress.
// GameInfo is only set for successful results that carried a title.
type Result struct {
	Progress UserProgress
	GameInfo GameInfo
}

type LeaderboardEntry struct {
	UserProgress
	ProfileImage string
	ProfileURL   string
}

// Snapshot is the computed leaderboard of one game at one point in time.
// A snapshot is never modified after it has been built.
type Snapshot struct {
	GameID      string
	GameInfo    GameInfo
	TopEntries  []LeaderboardEntry
	Overflow    []Handle
	GeneratedAt time.Time
	// FailedFetches counts the users excluded because their progress could not be fetched.
	FailedFetches int
}

// SingleProgress is the answer to a single-user progress query.
type SingleProgress struct {
	Title                 string
	TotalAchievements     uint
	CompletedAchievements uint
	CompletionPercentage  decimal.Decimal
}
