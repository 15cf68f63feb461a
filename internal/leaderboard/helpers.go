package leaderboard

import ws "github.com/gokatarajesh/livequiz/pkg/http/ws"

func toWSEntries(entries []Entry) []ws.LeaderboardEntry {
	result := make([]ws.LeaderboardEntry, len(entries))
	for i, e := range entries {
		result[i] = ws.LeaderboardEntry{
			Rank:           e.Rank,
			ParticipantID:  e.ParticipantID,
			Name:           e.Name,
			Points:         e.Points,
			Correct:        e.Correct,
			Answered:       e.Answered,
			TotalQuestions: e.TotalQuestions,
			Time:           e.TotalTime,
			AvgTime:        e.AvgTime,
		}
	}
	return result
}

func toWSQuestionEntries(entries []QuestionEntry) []ws.QuestionLeaderboardEntry {
	result := make([]ws.QuestionLeaderboardEntry, len(entries))
	for i, e := range entries {
		result[i] = ws.QuestionLeaderboardEntry{
			Rank:          e.Rank,
			ParticipantID: e.ParticipantID,
			Name:          e.Name,
			TimeTaken:     e.TimeTaken,
			Points:        e.Points,
			SubmittedAt:   e.SubmittedAt,
		}
	}
	return result
}
