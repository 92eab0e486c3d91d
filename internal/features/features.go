// Package features turns a transaction and its account history into the
// fixed-order vector consumed by the anomaly model and the rule engine.
package features

import (
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Count is the number of features in a Vector.
const Count = 10

// Names lists the features in vector order. The anomaly model artifacts and
// the rule expressions both depend on this order.
var Names = [Count]string{
	"amount",
	"hour",
	"day_of_week",
	"is_weekend",
	"is_business_hours",
	"amount_to_balance_ratio",
	"velocity_score",
	"location_risk",
	"time_risk",
	"transaction_type_encoded",
}

// Vector is the numeric form of a Set.
type Vector [Count]float64

// DefaultBalanceRatio is used when the balance is unknown or not positive.
const DefaultBalanceRatio = 0.5

// velocityDivisor is the transaction count that saturates the velocity score.
const velocityDivisor = 10.0

var riskyLocations = []string{"unknown", "foreign", "international", "offshore"}

// Set is the extracted feature set of one transaction.
type Set struct {
	Amount               float64 `json:"amount"`
	Hour                 int     `json:"hour"`
	DayOfWeek            int     `json:"day_of_week"` // Monday = 0
	IsWeekend            bool    `json:"is_weekend"`
	IsBusinessHours      bool    `json:"is_business_hours"`
	AmountToBalanceRatio float64 `json:"amount_to_balance_ratio"`
	VelocityScore        float64 `json:"velocity_score"`
	LocationRisk         float64 `json:"location_risk"`
	TimeRisk             float64 `json:"time_risk"`
	TypeCode             int     `json:"transaction_type_encoded"`
}

// Vector returns the features in Names order.
func (s Set) Vector() Vector {
	return Vector{
		s.Amount,
		float64(s.Hour),
		float64(s.DayOfWeek),
		boolFloat(s.IsWeekend),
		boolFloat(s.IsBusinessHours),
		s.AmountToBalanceRatio,
		s.VelocityScore,
		s.LocationRisk,
		s.TimeRisk,
		float64(s.TypeCode),
	}
}

// Activation returns the set keyed by feature name, typed for CEL:
// counts as int64, flags as bool, everything else as float64.
func (s Set) Activation() map[string]any {
	return map[string]any{
		"amount":                   s.Amount,
		"hour":                     int64(s.Hour),
		"day_of_week":              int64(s.DayOfWeek),
		"is_weekend":               s.IsWeekend,
		"is_business_hours":        s.IsBusinessHours,
		"amount_to_balance_ratio":  s.AmountToBalanceRatio,
		"velocity_score":           s.VelocityScore,
		"location_risk":            s.LocationRisk,
		"time_risk":                s.TimeRisk,
		"transaction_type_encoded": int64(s.TypeCode),
	}
}

// Extractor computes feature sets. It is safe for concurrent use.
type Extractor struct {
	businessStart  int
	businessEnd    int
	velocityWindow time.Duration
	loc            *time.Location
}

// NewExtractor creates an extractor from the fraud configuration.
func NewExtractor(cfg domain.FraudConfig) (*Extractor, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}
	window := cfg.VelocityWindow
	if window <= 0 {
		window = 60 * time.Minute
	}
	return &Extractor{
		businessStart:  cfg.BusinessHoursStart,
		businessEnd:    cfg.BusinessHoursEnd,
		velocityWindow: window,
		loc:            loc,
	}, nil
}

// Extract computes the feature set of tx. cctx may be nil.
// The velocity window ends at the transaction timestamp, so repeated calls
// with the same inputs return the same set.
func (e *Extractor) Extract(tx *domain.Transaction, cctx *domain.CustomerContext) Set {
	t := tx.Timestamp.In(e.loc)
	weekend := IsWeekend(t)
	business := IsBusinessHours(t, e.businessStart, e.businessEnd)

	s := Set{
		Amount:               tx.Amount,
		Hour:                 t.Hour(),
		DayOfWeek:            Weekday(t),
		IsWeekend:            weekend,
		IsBusinessHours:      business,
		AmountToBalanceRatio: DefaultBalanceRatio,
		LocationRisk:         LocationRisk(tx.Location),
		TimeRisk:             TimeRisk(t.Hour(), weekend, business),
		TypeCode:             tx.Type.Code(),
	}

	if cctx != nil {
		if cctx.AccountBalance > 0 {
			s.AmountToBalanceRatio = tx.Amount / cctx.AccountBalance
		}
		s.VelocityScore = Velocity(cctx.RecentTransactions, tx.Timestamp, e.velocityWindow)
	}
	return s
}

// Weekday returns the day of week with Monday = 0.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// IsWeekend reports whether t falls on Friday or Saturday.
func IsWeekend(t time.Time) bool {
	d := Weekday(t)
	return d == 4 || d == 5
}

// IsBusinessHours reports whether the clock time of t lies within
// [start:00:00, end:00:00], both ends inclusive.
func IsBusinessHours(t time.Time, start, end int) bool {
	clock := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return clock >= time.Duration(start)*time.Hour && clock <= time.Duration(end)*time.Hour
}

// IsLateNight reports whether hour is 23:00 or earlier than 06:00.
func IsLateNight(hour int) bool {
	return hour >= 23 || hour <= 5
}

// TimeRisk scores when a transaction happened, capped at 1.0.
func TimeRisk(hour int, weekend, business bool) float64 {
	risk := 0.0
	if !business {
		risk += 0.3
	}
	if weekend {
		risk += 0.2
	}
	if IsLateNight(hour) {
		risk += 0.4
	}
	return min(risk, 1.0)
}

// LocationRisk scores a free-text location: 0.6 for risky keywords,
// 0.1 when empty, 0 otherwise.
func LocationRisk(location string) float64 {
	if location == "" {
		return 0.1
	}
	lower := strings.ToLower(location)
	for _, kw := range riskyLocations {
		if strings.Contains(lower, kw) {
			return 0.6
		}
	}
	return 0.0
}

// Velocity counts the transactions in [ref-window, ref] and scales the count
// by velocityDivisor, capped at 1.0.
func Velocity(recent []*domain.Transaction, ref time.Time, window time.Duration) float64 {
	from := ref.Add(-window)
	n := 0
	for _, t := range recent {
		if t == nil {
			continue
		}
		if !t.Timestamp.Before(from) && !t.Timestamp.After(ref) {
			n++
		}
	}
	return min(float64(n)/velocityDivisor, 1.0)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
