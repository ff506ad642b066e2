package domain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func checks(statuses ...Health) []HealthCheck {
	out := make([]HealthCheck, len(statuses))
	for i, s := range statuses {
		out[i] = HealthCheck{Name: string(rune('a' + i)), Status: s}
	}
	return out
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name string
		in   []HealthCheck
		want Health
	}{
		{"empty", nil, HealthOffline},
		{"all healthy", checks(HealthHealthy, HealthHealthy), HealthHealthy},
		{"two degraded", checks(HealthDegraded, HealthDegraded, HealthHealthy), HealthHealthy},
		{"three degraded", checks(HealthDegraded, HealthDegraded, HealthDegraded), HealthDegraded},
		{"one critical", checks(HealthHealthy, HealthCritical), HealthCritical},
		{"offline component", checks(HealthHealthy, HealthOffline), HealthCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overall(tt.in))
		})
	}
}

func TestOverall_IndependentOfOrder(t *testing.T) {
	in := checks(HealthDegraded, HealthHealthy, HealthDegraded, HealthDegraded, HealthHealthy)
	want := Overall(in)
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		r.Shuffle(len(in), func(a, b int) { in[a], in[b] = in[b], in[a] })
		assert.Equal(t, want, Overall(in))
	}
}

func TestGrade(t *testing.T) {
	assert.Equal(t, HealthHealthy, Grade(70, 70, 90))
	assert.Equal(t, HealthDegraded, Grade(70.1, 70, 90))
	assert.Equal(t, HealthDegraded, Grade(90, 70, 90))
	assert.Equal(t, HealthCritical, Grade(90.1, 70, 90))
}

func TestWorseOf(t *testing.T) {
	assert.Equal(t, HealthCritical, WorseOf(HealthDegraded, HealthCritical))
	assert.Equal(t, HealthDegraded, WorseOf(HealthDegraded, HealthHealthy))
}
