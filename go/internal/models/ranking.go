package models

// RankingEntry is one participant's line on the live leaderboard as sent by
// the server.
type RankingEntry struct {
	UserID   ID      `json:"userId"`
	Nickname string  `json:"nickname,omitempty"`
	Avatar   string  `json:"avatar,omitempty"`
	Rank     int     `json:"rank,omitempty"`
	Score    float64 `json:"score"`
}

// Winner is a participant who won a prize in a finished round.
type Winner struct {
	UserID     ID     `json:"userId"`
	Nickname   string `json:"nickname,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	PrizeName  string `json:"prizeName,omitempty"`
	PrizeLevel int    `json:"prizeLevel,omitempty"`
}

// PrizeLevelName returns the display name for a prize level.
func PrizeLevelName(level int) string {
	switch level {
	case 1:
		return "Grand Prize"
	case 2:
		return "First Prize"
	case 3:
		return "Second Prize"
	case 4:
		return "Third Prize"
	case 5:
		return "Participation Prize"
	default:
		return "Prize"
	}
}
