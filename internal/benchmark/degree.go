package benchmark

import (
	"fmt"

	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// Degree is a qualitative generalization degree. It becomes a concrete level
// only for a given hierarchy height.
type Degree int

const (
	None Degree = iota
	Low
	LowMiddle
	MiddleHigh
	High
)

var degreeNames = [...]string{
	None:       "none",
	Low:        "low",
	LowMiddle:  "low-middle",
	MiddleHigh: "middle-high",
	High:       "high",
}

func (d Degree) String() string {
	if d < 0 || int(d) >= len(degreeNames) {
		return fmt.Sprintf("Degree(%d)", int(d))
	}
	return degreeNames[d]
}

// ParseDegree resolves a degree label.
func ParseDegree(s string) (Degree, error) {
	for i, name := range degreeNames {
		if name == s {
			return Degree(i), nil
		}
	}
	return 0, errors.ErrUnknownDegree.WithDetails(s)
}

// GeneralizationDegrees returns the degrees the experiments sweep over.
func GeneralizationDegrees() []Degree {
	return []Degree{Low, LowMiddle, MiddleHigh}
}

const (
	minHeight = 2
	maxHeight = 8
)

// levels[height-minHeight] holds the level for low, low-middle and
// middle-high. High shares the middle-high column.
var levels = [maxHeight - minHeight + 1][3]int{
	{0, 0, 0}, // 2
	{1, 1, 1}, // 3
	{1, 2, 2}, // 4
	{1, 2, 3}, // 5
	{1, 3, 4}, // 6
	{1, 3, 5}, // 7
	{1, 4, 6}, // 8
}

// GeneralizationLevel maps a hierarchy height and a degree to a level.
func GeneralizationLevel(height int, degree Degree) (int, error) {
	var tier int
	switch degree {
	case None:
		return 0, nil
	case Low:
		tier = 0
	case LowMiddle:
		tier = 1
	case MiddleHigh, High:
		tier = 2
	default:
		return 0, errors.ErrUnknownDegree.WithDetails(degree.String())
	}

	if height < minHeight || height > maxHeight {
		return 0, errors.ErrUnsupportedHeight.WithDetails(fmt.Sprintf("height %d", height))
	}
	return levels[height-minHeight][tier], nil
}
