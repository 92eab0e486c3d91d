package anomaly

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/opensource-finance/kestrel/internal/features"
)

// Scaler standardises each feature to zero mean and unit variance using the
// population standard deviation. Constant features are left unscaled.
type Scaler struct {
	Mean  [features.Count]float64 `json:"mean"`
	Scale [features.Count]float64 `json:"scale"`

	// Generation ties a scaler to the forest it was fitted with.
	Generation string `json:"generation"`
}

// FitScaler computes per-feature moments over rows.
func FitScaler(rows []features.Vector) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on zero rows")
	}

	s := &Scaler{}
	col := make([]float64, len(rows))
	for j := 0; j < features.Count; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s, nil
}

// Transform standardises v.
func (s *Scaler) Transform(v features.Vector) features.Vector {
	var out features.Vector
	for j := range v {
		out[j] = (v[j] - s.Mean[j]) / s.Scale[j]
	}
	return out
}

// TransformAll standardises every row.
func (s *Scaler) TransformAll(rows []features.Vector) []features.Vector {
	out := make([]features.Vector, len(rows))
	for i, r := range rows {
		out[i] = s.Transform(r)
	}
	return out
}
