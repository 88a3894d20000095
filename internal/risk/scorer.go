// Package risk scores clinical case intake data into a triage priority.
// Scoring is deterministic and total: the same input always produces the
// same assessment, and missing or malformed optional fields are skipped
// rather than rejected.
package risk

import (
	"fmt"
	"math"
	"strings"
)

// Level is the triage risk level derived from the score.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// VitalSigns are the optional measurements a CHW can capture in the field.
// Nil pointers mean the vital was not measured.
type VitalSigns struct {
	Temperature      *float64 `json:"temperature,omitempty"`      // degrees Celsius
	BloodPressure    string   `json:"bloodPressure,omitempty"`    // "systolic/diastolic"
	HeartRate        *float64 `json:"heartRate,omitempty"`        // beats per minute
	OxygenSaturation *float64 `json:"oxygenSaturation,omitempty"` // percent
	RespiratoryRate  *float64 `json:"respiratoryRate,omitempty"`  // breaths per minute
}

// Factors is the full input to one scoring call.
type Factors struct {
	Symptoms           []string    `json:"symptoms"`
	VitalSigns         *VitalSigns `json:"vitalSigns,omitempty"`
	Age                *float64    `json:"age,omitempty"`
	ExistingConditions []string    `json:"existingConditions,omitempty"`
	AIConfidence       *float64    `json:"aiConfidence,omitempty"`
	AIPrediction       string      `json:"aiPrediction,omitempty"`
}

// Assessment is the scoring result. Level, urgency and priority are pure
// functions of the score; factors and recommendations list which
// sub-conditions fired, most urgent first.
type Assessment struct {
	Score           int      `json:"score"`    // 0-100
	Level           Level    `json:"level"`
	Urgency         int      `json:"urgency"`  // 1-10
	Priority        int      `json:"priority"` // 1-5
	Factors         []string `json:"factors"`
	Recommendations []string `json:"recommendations"`
}

const (
	symptomWeight = 0.4
	vitalWeight   = 0.3
)

// Calculate maps clinical inputs to a triage assessment. It never fails.
func Calculate(f Factors) Assessment {
	var score float64
	factors := []string{}
	recommendations := []string{}

	// Symptom contribution: the worst symptom dominates, so reporting
	// many mild symptoms does not inflate the score.
	var symptomScore float64
	for _, symptom := range f.Symptoms {
		severity, known := symptomSeverity[strings.ToLower(symptom)]
		if !known {
			severity = unknownSymptomSeverity
		}
		symptomScore = math.Max(symptomScore, severity)

		if severity >= criticalSymptomThreshold {
			factors = append(factors, "Critical symptom: "+symptom)
		}
	}
	score += symptomScore * symptomWeight

	// Vital contribution: again the worst present vital dominates.
	if f.VitalSigns != nil {
		var vitalScore float64
		for _, reading := range []struct {
			value  *float64
			limits vitalLimits
		}{
			{f.VitalSigns.Temperature, temperatureLimits},
			{f.VitalSigns.HeartRate, heartRateLimits},
			{f.VitalSigns.OxygenSaturation, oxygenSaturationLimits},
			{f.VitalSigns.RespiratoryRate, respiratoryRateLimits},
		} {
			if !present(reading.value) {
				continue
			}
			switch reading.limits.classify(*reading.value) {
			case bandCritical:
				vitalScore = math.Max(vitalScore, reading.limits.CriticalScore)
				factors = append(factors, reading.limits.CriticalFactor)
				recommendations = append(recommendations, reading.limits.CriticalRecommendation)
			case bandHigh:
				vitalScore = math.Max(vitalScore, reading.limits.HighScore)
				factors = append(factors, reading.limits.HighFactor)
			}
		}
		score += vitalScore * vitalWeight
	}

	// Age and comorbidity bonuses are flat additions on top of the
	// weighted sub-scores. Keep it that way: downstream triage thresholds
	// are tuned against this exact arithmetic.
	if present(f.Age) {
		switch age := *f.Age; {
		case age < 1:
			score += 30
			factors = append(factors, "Infant - high risk")
			recommendations = append(recommendations, "Pediatric specialist consultation")
		case age < 5 || age > 65:
			score += 20
			factors = append(factors, "Vulnerable age group")
			recommendations = append(recommendations, "Extra monitoring recommended")
		}
	}

	if n := len(f.ExistingConditions); n > 0 {
		score += math.Min(float64(n)*5, 15)
		factors = append(factors, "Pre-existing medical conditions")
		recommendations = append(recommendations, "Review medical history")
	}

	if present(f.AIConfidence) && f.AIPrediction != "" && *f.AIConfidence > 0.8 {
		prediction := strings.ToLower(f.AIPrediction)
		switch {
		case strings.Contains(prediction, "critical"):
			score += 30
		case strings.Contains(prediction, "high"):
			score += 20
		default:
			score += 10
		}
		factors = append(factors, fmt.Sprintf("AI prediction: %s (%.1f%% confidence)", f.AIPrediction, *f.AIConfidence*100))
	}

	final := int(math.Round(score))
	if final > 100 {
		final = 100
	}
	if final < 0 {
		final = 0
	}

	assessment := Assessment{
		Score:           final,
		Factors:         factors,
		Recommendations: recommendations,
	}
	applyLevel(&assessment)
	return assessment
}

// applyLevel maps the score onto level/urgency/priority and prepends the
// level headline recommendation.
func applyLevel(a *Assessment) {
	var headline string

	switch {
	case a.Score >= 80:
		a.Level, a.Urgency, a.Priority = LevelCritical, 10, 5
		headline = "URGENT: Immediate hospital transfer required"
	case a.Score >= 60:
		a.Level, a.Urgency, a.Priority = LevelHigh, 7, 4
		headline = "High priority: Medical consultation within 24 hours"
	case a.Score >= 40:
		a.Level, a.Urgency, a.Priority = LevelMedium, 5, 2
		headline = "Monitor closely and follow up in 2-3 days"
	default:
		a.Level, a.Urgency, a.Priority = LevelLow, 3, 1
		headline = "Standard care and follow-up as needed"
	}

	a.Recommendations = append([]string{headline}, a.Recommendations...)

	if a.Score >= 60 {
		a.Recommendations = append(a.Recommendations,
			"Document all symptoms and vital signs",
			"Prepare for possible hospitalization")
	}
}

// QuickCheck scores from symptoms alone, for fast field triage.
func QuickCheck(symptoms []string) (int, Level) {
	assessment := Calculate(Factors{Symptoms: symptoms})
	return assessment.Score, assessment.Level
}

// present reports whether an optional numeric field carries a usable
// value. NaN and infinities are treated as absent, never as errors.
func present(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
