package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/routine-coach/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestCalculateAge(t *testing.T) {
	birthday := date(2000, time.March, 15)

	assert.Equal(t, 23, CalculateAge(birthday, date(2024, time.March, 14)))
	assert.Equal(t, 24, CalculateAge(birthday, date(2024, time.March, 15)))
	assert.Equal(t, 24, CalculateAge(birthday, date(2024, time.December, 31)))
	assert.Equal(t, 23, CalculateAge(birthday, date(2024, time.February, 29)))
}

func TestCalculateBMI(t *testing.T) {
	tests := []struct {
		name     string
		height   float64
		weight   float64
		value    float64
		category string
	}{
		{"normal", 170, 70, 24.2, BMINormal},
		{"normal lower boundary", 200, 74, 18.5, BMINormal},
		{"category from the unrounded value", 170, 72.13, 25, BMINormal},
		{"overweight boundary", 200, 100, 25, BMIOverweight},
		{"underweight", 180, 50, 15.4, BMIUnderweight},
		{"obese", 160, 90, 35.2, BMIObese},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bmi, ok := CalculateBMI(tt.height, tt.weight)
			require.True(t, ok)
			assert.InDelta(t, tt.value, bmi.Value, 1e-9)
			assert.Equal(t, tt.category, bmi.Category)
		})
	}

	_, ok := CalculateBMI(0, 70)
	assert.False(t, ok)
	_, ok = CalculateBMI(170, -1)
	assert.False(t, ok)
}

func TestProfileAge_FutureOrTodayBirthday(t *testing.T) {
	now := date(2024, time.June, 1)
	future := date(2025, time.January, 1)
	sameDay := date(2024, time.June, 1)

	assert.Nil(t, ProfileAge(domain.Profile{Birthday: &future}, now))
	assert.Nil(t, ProfileAge(domain.Profile{Birthday: &sameDay}, now))
	assert.Nil(t, ProfileAge(domain.Profile{}, now))
}

func TestBuildProfileContext_Empty(t *testing.T) {
	assert.Equal(t, "", BuildProfileContext(domain.Profile{}, time.Now()))
}

func TestBuildProfileContext_Full(t *testing.T) {
	birthday := date(1990, time.July, 1)
	p := domain.Profile{
		FullName: "Sam Lee",
		Birthday: &birthday,
		HeightCm: float64Ptr(170),
		WeightKg: float64Ptr(70),
	}

	got := BuildProfileContext(p, date(2024, time.June, 30))

	assert.True(t, strings.HasPrefix(got, "\n\nUSER PROFILE CONTEXT:\n"))
	assert.Contains(t, got, "- Name: Sam Lee\n")
	assert.Contains(t, got, "- Age: 33 years old\n")
	assert.Contains(t, got, "- Height: 170 cm\n")
	assert.Contains(t, got, "- Weight: 70 kg\n")
	assert.Contains(t, got, "- BMI: 24.2 (Normal weight)\n")
	assert.Contains(t, got, "personalize your fitness advice")
}

func TestBuildProfileContext_Partial(t *testing.T) {
	p := domain.Profile{WeightKg: float64Ptr(72.5)}

	got := BuildProfileContext(p, time.Now())

	assert.Contains(t, got, "- Name: Not provided\n")
	assert.Contains(t, got, "- Age: Not provided\n")
	assert.Contains(t, got, "- Height: Not provided\n")
	assert.Contains(t, got, "- Weight: 72.5 kg\n")
	assert.Contains(t, got, "- BMI: Not calculated\n")
}
