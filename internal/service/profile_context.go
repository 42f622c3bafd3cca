package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"alcyxob/routine-coach/internal/domain"
)

// BMI categories.
const (
	BMIUnderweight = "Underweight"
	BMINormal      = "Normal weight"
	BMIOverweight  = "Overweight"
	BMIObese       = "Obese"
)

// BMI is a body mass index rounded to one decimal with its category.
type BMI struct {
	Value    float64 `json:"value"`
	Category string  `json:"category"`
}

// CalculateAge returns the age in whole years on the calendar day of now.
// A birthday later in the year than today has not been reached yet.
func CalculateAge(birthday, now time.Time) int {
	by, bm, bd := birthday.Date()
	ny, nm, nd := now.Date()

	age := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		age--
	}
	return age
}

// CalculateBMI computes weight / height² with height given in centimeters.
// ok is false when either measurement is missing or not positive.
func CalculateBMI(heightCm, weightKg float64) (bmi BMI, ok bool) {
	if heightCm <= 0 || weightKg <= 0 {
		return BMI{}, false
	}

	heightM := heightCm / 100
	raw := weightKg / (heightM * heightM)

	// The category comes from the unrounded value; only Value is rounded.
	return BMI{Value: math.Round(raw*10) / 10, Category: classifyBMI(raw)}, true
}

func classifyBMI(value float64) string {
	switch {
	case value < 18.5:
		return BMIUnderweight
	case value < 25:
		return BMINormal
	case value < 30:
		return BMIOverweight
	default:
		return BMIObese
	}
}

// ProfileAge returns the derived age, or nil when the birthday is unknown or not in the past.
func ProfileAge(p domain.Profile, now time.Time) *int {
	if p.Birthday == nil {
		return nil
	}
	age := CalculateAge(p.Birthday.UTC(), now.UTC())
	if age <= 0 {
		return nil
	}
	return &age
}

// ProfileBMI returns the derived BMI, or nil when height or weight is missing.
func ProfileBMI(p domain.Profile) *BMI {
	if p.HeightCm == nil || p.WeightKg == nil {
		return nil
	}
	bmi, ok := CalculateBMI(*p.HeightCm, *p.WeightKg)
	if !ok {
		return nil
	}
	return &bmi
}

// BuildProfileContext renders the profile block appended to prompts. It is
// empty for an empty profile.
func BuildProfileContext(p domain.Profile, now time.Time) string {
	if p.IsEmpty() {
		return ""
	}

	const notProvided = "Not provided"

	name := notProvided
	if strings.TrimSpace(p.FullName) != "" {
		name = strings.TrimSpace(p.FullName)
	}

	age := notProvided
	if a := ProfileAge(p, now); a != nil {
		age = fmt.Sprintf("%d years old", *a)
	}

	height := notProvided
	if p.HeightCm != nil && *p.HeightCm > 0 {
		height = formatNumber(*p.HeightCm) + " cm"
	}

	weight := notProvided
	if p.WeightKg != nil && *p.WeightKg > 0 {
		weight = formatNumber(*p.WeightKg) + " kg"
	}

	bmi := "Not calculated"
	if b := ProfileBMI(p); b != nil {
		bmi = fmt.Sprintf("%s (%s)", formatNumber(b.Value), b.Category)
	}

	var sb strings.Builder
	sb.WriteString("\n\nUSER PROFILE CONTEXT:\n")
	fmt.Fprintf(&sb, "- Name: %s\n", name)
	fmt.Fprintf(&sb, "- Age: %s\n", age)
	fmt.Fprintf(&sb, "- Height: %s\n", height)
	fmt.Fprintf(&sb, "- Weight: %s\n", weight)
	fmt.Fprintf(&sb, "- BMI: %s\n", bmi)
	sb.WriteString("\nUse this information to personalize your fitness advice. ")
	sb.WriteString("Consider their age, BMI category, and physical stats when making recommendations.")
	return sb.String()
}

// formatNumber prints 175 as "175" and 72.5 as "72.5".
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
