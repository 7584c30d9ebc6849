package dice

import "math/rand/v2"

// Roller is the source of randomness for rolls. It is an interface so tests
// can substitute a deterministic implementation.
type Roller interface {
	// Roll returns count uniform values in [1, sides].
	Roll(count, sides int) []int
	// RollFudge returns count uniform values in {-1, 0, +1}.
	RollFudge(count int) []int
}

// NewRoller returns a Roller backed by math/rand.
func NewRoller() Roller {
	return randRoller{}
}

type randRoller struct{}

func (randRoller) Roll(count, sides int) []int {
	faces := make([]int, count)
	for i := range faces {
		faces[i] = rand.IntN(sides) + 1
	}
	return faces
}

func (randRoller) RollFudge(count int) []int {
	faces := make([]int, count)
	for i := range faces {
		faces[i] = rand.IntN(3) - 1
	}
	return faces
}
