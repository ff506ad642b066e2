// Package domain contains the safety verdict types.
package domain

import "fmt"

// Level grades a safety finding. Higher is worse.
type Level int

const (
	LevelSafe Level = iota
	LevelWarning
	LevelDangerous
	LevelReject
)

func (l Level) String() string {
	switch l {
	case LevelSafe:
		return "SAFE"
	case LevelWarning:
		return "WARNING"
	case LevelDangerous:
		return "DANGEROUS"
	case LevelReject:
		return "REJECT"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// MarshalText renders the level name in JSON and logs.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Permits reports whether a trade may continue at this level.
func (l Level) Permits() bool {
	switch l {
	case LevelSafe, LevelWarning:
		return true
	case LevelDangerous, LevelReject:
		return false
	default:
		return false
	}
}

// Worst returns the more severe of two levels.
func Worst(a, b Level) Level {
	if b > a {
		return b
	}
	return a
}
