package brackets

import (
	"math/rand"

	"github.com/Dosada05/chess-arena/models"
)

// Pair is one generated pairing. Black holds models.ByePlayer when the
// participant count is odd and White advances without playing.
type Pair struct {
	White string
	Black string
}

// Generate shuffles the participants and pairs them consecutively. An odd
// count leaves the final participant with a bye. The shuffle is unbiased and
// deliberately not deterministic; callers must not rely on pairing order.
func Generate(participants []string) []Pair {
	shuffled := make([]string, len(participants))
	copy(shuffled, participants)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	pairs := make([]Pair, 0, (len(shuffled)+1)/2)
	for i := 0; i+1 < len(shuffled); i += 2 {
		pairs = append(pairs, Pair{White: shuffled[i], Black: shuffled[i+1]})
	}
	if len(shuffled)%2 == 1 {
		pairs = append(pairs, Pair{White: shuffled[len(shuffled)-1], Black: models.ByePlayer})
	}
	return pairs
}

// RoundName maps a participant count to its elimination tier. Counts above 16
// are not a distinct tier; this is a known limitation, kept on purpose.
func RoundName(numPlayers int) string {
	switch {
	case numPlayers <= 2:
		return "Final"
	case numPlayers <= 4:
		return "Semi Final"
	case numPlayers <= 8:
		return "Quarter Final"
	default:
		return "Round of 16"
	}
}
