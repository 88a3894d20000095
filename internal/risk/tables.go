package risk

// symptomSeverity maps lower-cased symptom names to a severity in [0,100].
// Symptoms outside the table default to unknownSymptomSeverity.
var symptomSeverity = map[string]float64{
	// Critical symptoms (80-100)
	"chest pain":           90,
	"severe bleeding":      95,
	"unconscious":          100,
	"difficulty breathing": 85,
	"seizure":              90,
	"severe headache":      75,
	"stroke symptoms":      95,

	// High severity (60-79)
	"high fever":            70,
	"persistent vomiting":   65,
	"severe abdominal pain": 70,
	"confusion":             75,
	"severe weakness":       65,
	"blood in stool":        70,
	"blood in urine":        70,

	// Medium severity (40-59)
	"fever":      50,
	"cough":      40,
	"headache":   45,
	"nausea":     45,
	"diarrhea":   50,
	"rash":       40,
	"joint pain": 45,
	"fatigue":    40,

	// Low severity (20-39)
	"mild fever":  30,
	"sore throat": 35,
	"runny nose":  25,
	"mild cough":  30,
	"body ache":   35,
}

const unknownSymptomSeverity = 30

// criticalSymptomThreshold is the severity at or above which a symptom is
// reported as a critical contributing factor.
const criticalSymptomThreshold = 70

// vitalBand classifies a single vital sign reading.
type vitalBand int

const (
	bandNormal vitalBand = iota
	bandMedium
	bandHigh
	bandCritical
)

// vitalLimits holds the fixed boundaries of the four bands for one vital.
// A reading is critical when it falls outside [CriticalLow, CriticalHigh],
// high outside [HighLow, HighHigh], medium outside [MediumLow, MediumHigh].
type vitalLimits struct {
	CriticalLow, CriticalHigh float64
	HighLow, HighHigh         float64
	MediumLow, MediumHigh     float64

	// Band scores feeding the vital sub-score. Only critical and high
	// bands contribute; medium and normal readings score zero.
	CriticalScore, HighScore float64

	CriticalFactor, HighFactor string
	CriticalRecommendation     string
}

func (l vitalLimits) classify(v float64) vitalBand {
	switch {
	case v >= l.CriticalHigh || v <= l.CriticalLow:
		return bandCritical
	case v >= l.HighHigh || v <= l.HighLow:
		return bandHigh
	case v >= l.MediumHigh || v <= l.MediumLow:
		return bandMedium
	default:
		return bandNormal
	}
}

var (
	temperatureLimits = vitalLimits{
		CriticalLow: 35, CriticalHigh: 40,
		HighLow: 36, HighHigh: 39,
		MediumLow: 36.5, MediumHigh: 38.5,
		CriticalScore: 90, HighScore: 70,
		CriticalFactor:         "Critical temperature",
		HighFactor:             "Abnormal temperature",
		CriticalRecommendation: "Immediate medical attention required",
	}

	heartRateLimits = vitalLimits{
		CriticalLow: 40, CriticalHigh: 130,
		HighLow: 50, HighHigh: 110,
		MediumLow: 60, MediumHigh: 100,
		CriticalScore: 90, HighScore: 70,
		CriticalFactor:         "Critical heart rate",
		HighFactor:             "Abnormal heart rate",
		CriticalRecommendation: "Emergency cardiac evaluation",
	}

	// Oxygen saturation only degrades downward, so the upper boundaries
	// are unreachable sentinels.
	oxygenSaturationLimits = vitalLimits{
		CriticalLow: 90, CriticalHigh: 101,
		HighLow: 93, HighHigh: 101,
		MediumLow: 95, MediumHigh: 101,
		CriticalScore: 95, HighScore: 75,
		CriticalFactor:         "Critical oxygen saturation",
		HighFactor:             "Low oxygen saturation",
		CriticalRecommendation: "Oxygen support needed immediately",
	}

	respiratoryRateLimits = vitalLimits{
		CriticalLow: 8, CriticalHigh: 30,
		HighLow: 10, HighHigh: 25,
		MediumLow: 12, MediumHigh: 22,
		CriticalScore: 90, HighScore: 70,
		CriticalFactor:         "Critical respiratory rate",
		HighFactor:             "Abnormal respiratory rate",
		CriticalRecommendation: "Respiratory support may be needed",
	}
)
