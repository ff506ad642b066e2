package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewResult_Level(t *testing.T) {
	assert.Equal(t, LevelSafe, NewResult("x", nil, nil).Level)
	assert.Equal(t, LevelWarning, NewResult("x", nil, []string{"w"}).Level)
	assert.Equal(t, LevelReject, NewResult("x", []string{"i"}, []string{"w"}).Level)
}

func TestAggregate_WorstLevelAndOrder(t *testing.T) {
	rep := Aggregate([]CheckResult{
		NewResult("a", nil, []string{"w1"}),
		NewResult("b", []string{"i1"}, nil),
		NewResult("c", nil, []string{"w2"}),
	}, time.Now())

	assert.Equal(t, LevelReject, rep.Level)
	assert.False(t, rep.Passed())
	assert.Equal(t, []string{"i1"}, rep.Issues)
	assert.Equal(t, []string{"w1", "w2"}, rep.Warnings)
}

func TestAggregate_Empty(t *testing.T) {
	rep := Aggregate(nil, time.Now())
	assert.Equal(t, LevelSafe, rep.Level)
	assert.True(t, rep.Passed())
}

func TestLevel_Permits(t *testing.T) {
	assert.True(t, LevelSafe.Permits())
	assert.True(t, LevelWarning.Permits())
	assert.False(t, LevelDangerous.Permits())
	assert.False(t, LevelReject.Permits())
	assert.Equal(t, "REJECT", LevelReject.String())
}
