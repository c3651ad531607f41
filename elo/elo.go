// Package elo implements the standard Elo update applied after a decisive
// game. Draws never reach this package.
package elo

import "math"

const defaultKFactor = 32

// Update returns the new ratings for the winner and loser of a decisive game.
func Update(winnerRating, loserRating int) (newWinner, newLoser int) {
	expectedWinner := expectedScore(float64(winnerRating), float64(loserRating))

	newWinner = int(math.Round(float64(winnerRating) + defaultKFactor*(1-expectedWinner)))
	newLoser = int(math.Round(float64(loserRating) - defaultKFactor*(1-expectedWinner)))
	return newWinner, newLoser
}

func expectedScore(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/400.0))
}
