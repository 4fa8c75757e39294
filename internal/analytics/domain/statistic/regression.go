package statistic

import "math"

// Point is one (temperature, usage) observation.
type Point struct {
	X float64
	Y float64
}

// Trend is a least-squares line y = Slope*x + Intercept.
type Trend struct {
	Slope     float64
	Intercept float64
}

// At evaluates the line.
func (t Trend) At(x float64) float64 { return t.Slope*x + t.Intercept }

// FitTrend fits an ordinary least-squares line. Points with NaN coordinates are skipped.
func FitTrend(points []Point) (Trend, error) {
	var n, sumX, sumY float64
	for _, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			continue
		}
		n++
		sumX += p.X
		sumY += p.Y
	}
	if n < 2 {
		return Trend{}, ErrInsufficientPoints
	}
	meanX, meanY := sumX/n, sumY/n

	var sxx, sxy float64
	for _, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			continue
		}
		dx := p.X - meanX
		sxx += dx * dx
		sxy += dx * (p.Y - meanY)
	}
	if sxx == 0 {
		return Trend{}, ErrDegenerateTrend
	}
	slope := sxy / sxx
	return Trend{Slope: slope, Intercept: meanY - slope*meanX}, nil
}

// FitHeatingTrend fits only the points colder than threshold.
func FitHeatingTrend(points []Point, threshold float64) (Trend, error) {
	cold := make([]Point, 0, len(points))
	for _, p := range points {
		if p.X < threshold {
			cold = append(cold, p)
		}
	}
	return FitTrend(cold)
}
