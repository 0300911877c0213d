package entity

import (
	"errors"
	"fmt"
	"time"
)

const (
	ResultWin     = "win"
	ResultLoss    = "loss"
	ResultDraw    = "draw"
	ResultAbandon = "abandon"
)

// DateLayout is the calendar-date format of LastPlayedDate.
const DateLayout = time.DateOnly

var ErrUnknownResult = errors.New("unknown game result")

// PlayerStats - cumulative record of one identity.
type PlayerStats struct {
	PlayerID string `json:"player_id"`

	GamesPlayed            int   `json:"games_played"`
	GamesWon               int   `json:"games_won"`
	GamesLost              int   `json:"games_lost"`
	GamesDrawn             int   `json:"games_drawn"`
	GamesAbandoned         int   `json:"games_abandoned"`
	TotalTimePlayedSeconds int64 `json:"total_time_played_seconds"`

	CurrentDaysPlayedStreak int    `json:"current_days_played_streak"`
	LongestDaysPlayedStreak int    `json:"longest_days_played_streak"`
	LastPlayedDate          string `json:"last_played_date,omitempty"`

	CurrentUnbeatenStreak int `json:"current_unbeaten_streak"`
	LongestUnbeatenStreak int `json:"longest_unbeaten_streak"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Record applies one finished game to the record. today is the server's current time;
// only its calendar date is used.
func (that *PlayerStats) Record(result string, durationSeconds int64, today time.Time) error {
	switch result {
	case ResultWin:
		that.GamesWon++
		that.extendUnbeatenStreak()
	case ResultDraw:
		// a draw keeps the unbeaten streak alive
		that.GamesDrawn++
		that.extendUnbeatenStreak()
	case ResultLoss:
		that.GamesLost++
		that.CurrentUnbeatenStreak = 0
	case ResultAbandon:
		that.GamesAbandoned++
		that.CurrentUnbeatenStreak = 0
	default:
		return fmt.Errorf("%w: %s", ErrUnknownResult, result)
	}

	that.GamesPlayed++
	if durationSeconds > 0 {
		that.TotalTimePlayedSeconds += durationSeconds
	}

	that.updateDailyStreak(today)
	that.UpdatedAt = today

	return nil
}

func (that *PlayerStats) extendUnbeatenStreak() {
	that.CurrentUnbeatenStreak++
	that.LongestUnbeatenStreak = max(that.LongestUnbeatenStreak, that.CurrentUnbeatenStreak)
}

func (that *PlayerStats) updateDailyStreak(today time.Time) {
	todayDate := today.Format(DateLayout)
	if that.LastPlayedDate == todayDate {
		return
	}

	if that.LastPlayedDate == today.AddDate(0, 0, -1).Format(DateLayout) {
		that.CurrentDaysPlayedStreak++
	} else {
		that.CurrentDaysPlayedStreak = 1
	}

	that.LongestDaysPlayedStreak = max(that.LongestDaysPlayedStreak, that.CurrentDaysPlayedStreak)
	that.LastPlayedDate = todayDate
}

// GlobalStats - read-side aggregate over all persisted games.
type GlobalStats struct {
	TotalGames             int     `json:"total_games"`
	WaitingGames           int     `json:"waiting_games"`
	ActiveGames            int     `json:"active_games"`
	CompletedGames         int     `json:"completed_games"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
	AverageMoves           float64 `json:"average_moves"`
}

// ComputeGlobalStats averages duration and moves over completed games only.
func ComputeGlobalStats(games []*Game) *GlobalStats {
	stats := &GlobalStats{TotalGames: len(games)}

	var totalDuration int64
	var totalMoves int

	for _, game := range games {
		switch game.Status {
		case StatusWaiting:
			stats.WaitingGames++
		case StatusActive:
			stats.ActiveGames++
		case StatusCompleted:
			stats.CompletedGames++
			totalDuration += game.DurationSeconds()
			totalMoves += game.MoveCount
		}
	}

	if stats.CompletedGames > 0 {
		stats.AverageDurationSeconds = float64(totalDuration) / float64(stats.CompletedGames)
		stats.AverageMoves = float64(totalMoves) / float64(stats.CompletedGames)
	}

	return stats
}
