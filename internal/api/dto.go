package api

import (
	"time"

	"github.com/victornm/raboard/internal/domain"
)

// timeLayout renders timestamps the way browsers do with Date.toISOString.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type (
	GameInfo struct {
		Title     string `json:"Title"`
		ImageIcon string `json:"ImageIcon"`
	}

	LeaderboardEntry struct {
		Username              string  `json:"username"`
		ProfileImage          string  `json:"profileImage"`
		ProfileURL            string  `json:"profileUrl"`
		CompletedAchievements uint    `json:"completedAchievements"`
		TotalAchievements     uint    `json:"totalAchievements"`
		CompletionPercentage  float64 `json:"completionPercentage"`
	}

	LeaderboardResponse struct {
		GameInfo               GameInfo           `json:"gameInfo"`
		Leaderboard            []LeaderboardEntry `json:"leaderboard"`
		AdditionalParticipants []string           `json:"additionalParticipants"`
		LastUpdated            string             `json:"lastUpdated"`
	}

	UserProgress struct {
		Title                 string  `json:"Title"`
		TotalAchievements     uint    `json:"totalAchievements"`
		CompletedAchievements uint    `json:"completedAchievements"`
		CompletionPercentage  float64 `json:"completionPercentage"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
)

func toLeaderboard(s *domain.Snapshot) LeaderboardResponse {
	l := LeaderboardResponse{
		GameInfo: GameInfo{
			Title:     s.GameInfo.Title,
			ImageIcon: s.GameInfo.ImageIcon,
		},
		Leaderboard:            make([]LeaderboardEntry, 0, len(s.TopEntries)),
		AdditionalParticipants: make([]string, 0, len(s.Overflow)),
		LastUpdated:            formatTime(s.GeneratedAt),
	}

	for _, e := range s.TopEntries {
		l.Leaderboard = append(l.Leaderboard, LeaderboardEntry{
			Username:              string(e.Handle),
			ProfileImage:          e.ProfileImage,
			ProfileURL:            e.ProfileURL,
			CompletedAchievements: e.CompletedAchievements,
			TotalAchievements:     e.TotalAchievements,
			CompletionPercentage:  e.CompletionPercentage.InexactFloat64(),
		})
	}

	for _, h := range s.Overflow {
		l.AdditionalParticipants = append(l.AdditionalParticipants, string(h))
	}

	return l
}

func toUserProgress(p *domain.SingleProgress) UserProgress {
	return UserProgress{
		Title:                 p.Title,
		TotalAchievements:     p.TotalAchievements,
		CompletedAchievements: p.CompletedAchievements,
		CompletionPercentage:  p.CompletionPercentage.InexactFloat64(),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
