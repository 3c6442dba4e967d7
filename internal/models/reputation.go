package models

import "encoding/json"

type ReputationLevel string

const (
	LevelNewcomer ReputationLevel = "newcomer"
	LevelActive   ReputationLevel = "active"
	LevelExpert   ReputationLevel = "expert"
	LevelLeader   ReputationLevel = "leader"
	LevelLegend   ReputationLevel = "legend"
)

// levelThresholds минимальный счёт для каждого уровня, по возрастанию
var levelThresholds = []struct {
	min   int
	level ReputationLevel
}{
	{0, LevelNewcomer},
	{101, LevelActive},
	{501, LevelExpert},
	{1001, LevelLeader},
	{2500, LevelLegend},
}

// LevelForScore уровень репутации по сумме очков
func LevelForScore(score int) ReputationLevel {
	level := LevelNewcomer
	for _, t := range levelThresholds {
		if score >= t.min {
			level = t.level
		}
	}
	return level
}

// PointsToNextLevel сколько очков не хватает до следующего уровня; 0 для legend
func PointsToNextLevel(score int) int {
	for _, t := range levelThresholds {
		if score < t.min {
			return t.min - score
		}
	}
	return 0
}

// UserReputation копится внешними событиями, клиент только читает
type UserReputation struct {
	UserID            ID              `json:"user_id"`
	TotalScore        int             `json:"total_score"`
	Level             ReputationLevel `json:"level"`
	EventsAttended    int             `json:"events_attended"`
	EventsOrganized   int             `json:"events_organized"`
	ArticlesPublished int             `json:"articles_published"`
	HelpfulReviews    int             `json:"helpful_reviews"`
}

// UnmarshalJSON пересчитывает уровень из total_score
func (r *UserReputation) UnmarshalJSON(b []byte) error {
	type alias UserReputation
	if err := json.Unmarshal(b, (*alias)(r)); err != nil {
		return err
	}
	r.Level = LevelForScore(r.TotalScore)
	return nil
}
