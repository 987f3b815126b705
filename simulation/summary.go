package simulation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultSettlingBand is the tolerance, as a fraction of the step size,
// used to decide that the response has settled
const DefaultSettlingBand = 0.02

// Summary describes the closed-loop response to the last setpoint segment
type Summary struct {
	Steps             int     `json:"steps"`
	FinalSetpoint     float64 `json:"final_setpoint"`
	FinalMeasurement  float64 `json:"final_measurement"`
	FinalError        float64 `json:"final_error"`
	MeanAbsError      float64 `json:"mean_abs_error"`
	RMSError          float64 `json:"rms_error"`
	TailErrorStdDev   float64 `json:"tail_error_stddev"` // Over the second half of the run
	OvershootPercent  float64 `json:"overshoot_percent"`
	RiseTime          float64 `json:"rise_time"` // 10% to 90% of the step
	Risen             bool    `json:"risen"`
	SettlingTime      float64 `json:"settling_time"` // Relative to the start of the segment
	Settled           bool    `json:"settled"`
	SaturatedFraction float64 `json:"saturated_fraction"`
}

// Summarize computes response statistics for res. band is the settling
// tolerance as a fraction of the step size.
func Summarize(res *Result, band float64) Summary {
	n := len(res.Samples)
	if n == 0 {
		return Summary{}
	}

	errs := make([]float64, n)
	abs := make([]float64, n)
	sq := make([]float64, n)
	saturated := 0
	for i, s := range res.Samples {
		errs[i] = s.Setpoint - s.Measurement
		abs[i] = math.Abs(errs[i])
		sq[i] = errs[i] * errs[i]
		if s.Terms.Saturated() {
			saturated++
		}
	}

	last := res.Samples[n-1]
	sum := Summary{
		Steps:             n,
		FinalSetpoint:     last.Setpoint,
		FinalMeasurement:  last.Measurement,
		FinalError:        errs[n-1],
		MeanAbsError:      stat.Mean(abs, nil),
		RMSError:          math.Sqrt(stat.Mean(sq, nil)),
		SaturatedFraction: float64(saturated) / float64(n),
	}
	if tail := errs[n/2:]; len(tail) > 1 {
		sum.TailErrorStdDev = stat.StdDev(tail, nil)
	}

	// The segment is the run of samples sharing the final setpoint
	start := n - 1
	for start > 0 && res.Samples[start-1].Setpoint == last.Setpoint {
		start--
	}
	initial := res.Initial
	if start > 0 {
		initial = res.Samples[start-1].Measurement
	}
	segment := res.Samples[start:]
	ys := make([]float64, len(segment))
	for i, s := range segment {
		ys[i] = s.Measurement
	}

	sp := last.Setpoint
	amplitude := sp - initial

	// Overshoot past the setpoint in the direction of the step
	switch {
	case amplitude > 0:
		sum.OvershootPercent = math.Max(0, (floats.Max(ys)-sp)/amplitude*100)
	case amplitude < 0:
		sum.OvershootPercent = math.Max(0, (sp-floats.Min(ys))/-amplitude*100)
	}

	// Rise time from 10% to 90% of the step
	if amplitude != 0 {
		lo, hi := -1, -1
		for i, y := range ys {
			frac := (y - initial) / amplitude
			if lo < 0 && frac >= 0.1 {
				lo = i
			}
			if hi < 0 && frac >= 0.9 {
				hi = i
				break
			}
		}
		if lo >= 0 && hi >= 0 {
			sum.Risen = true
			sum.RiseTime = segment[hi].Time - segment[lo].Time
		}
	}

	tol := band * math.Abs(amplitude)
	if tol == 0 {
		tol = band * math.Abs(sp)
	}
	if tol == 0 {
		tol = band
	}
	lastOutside := -1
	for i, y := range ys {
		if math.Abs(y-sp) > tol {
			lastOutside = i
		}
	}
	if lastOutside < len(ys)-1 {
		sum.Settled = true
		sum.SettlingTime = segment[lastOutside+1].Time - segment[0].Time
	}

	return sum
}
