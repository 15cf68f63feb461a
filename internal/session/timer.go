package session

import "time"

// RemainingSeconds derives what is left of a quiz-wide timer without any scheduled callback.
// Paused time is excluded: remaining = duration - (now - start - pausedSeconds), floored at 0.
func RemainingSeconds(now, start time.Time, pausedSeconds, duration int) int {
	elapsed := int(now.Sub(start).Seconds()) - pausedSeconds
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := duration - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
