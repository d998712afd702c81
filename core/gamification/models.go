package gamification

import "time"

type Badge string

const (
	Badge100Pontos         Badge = "100_pontos"
	Badge500Pontos         Badge = "500_pontos"
	BadgePrimeiraAprovacao Badge = "primeira_aprovacao"
)

// thresholds unlocked by the running total of points, in ascending order
var pointBadges = []struct {
	min   int
	badge Badge
}{
	{100, Badge100Pontos},
	{500, Badge500Pontos},
}

// Entry is one line of the points ledger.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source,omitempty"` // unique per user when set
	CreatedAt time.Time `json:"created_at"`
}

type Conquista struct {
	UserID     string    `json:"-"`
	Badge      Badge     `json:"badge"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

type Summary struct {
	TotalPoints int         `json:"total_points"`
	Level       int         `json:"level"`
	Badges      []Conquista `json:"badges"`
	Recent      []Entry     `json:"recent"`
}

// Level is the level reached with total points: one level per hundred points.
func Level(total int) int {
	if total < 0 {
		total = 0
	}
	return 1 + total/100
}
