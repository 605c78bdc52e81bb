package domain

const (
	EventNameLeaderboardComputed = "leaderboard.computed"
)

// EventLeaderboardComputed is published after a leaderboard has been freshly computed.
// Cache hits do not publish it.
type EventLeaderboardComputed struct {
	Snapshot Snapshot
}

func (EventLeaderboardComputed) Name() string { return EventNameLeaderboardComputed }
