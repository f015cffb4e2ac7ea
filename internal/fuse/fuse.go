// Package fuse maps optional long/short ratio and open interest inputs to a
// single long-probability percentage. The fusion is heuristic: it is a
// sentiment summary, not a predictive signal.
package fuse

import "math"

// Weights are the relative contributions of the fusion inputs. OpenInterest
// also sets the bump cap: the open interest contribution can shift the fused
// probability by at most OpenInterest/2.
type Weights struct {
	Global       float64
	Taker        float64
	OpenInterest float64
}

// DefaultWeights returns the standard fusion weights.
func DefaultWeights() Weights {
	return Weights{Global: 0.45, Taker: 0.45, OpenInterest: 0.10}
}

// oiScale normalizes raw contract counts before the logistic squash; one
// million contracts maps to the logistic midpoint.
const oiScale = 1e6

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Fuse computes the long probability percentage from the present inputs.
//
// Each present ratio r maps to a probability r/(1+r), so a ratio of 1.0 is
// neutral. The probabilities are combined by weighted mean; when both ratios
// are absent the result is a neutral 50.00 regardless of open interest. A
// present open interest adds a capped upward bump: large open interest is
// read as higher conviction behind the prevailing sentiment. The bump is
// always additive, an asymmetry kept from the original behavior.
func Fuse(w Weights, globalRatio, takerRatio, openInterest *float64) float64 {
	var sum, weightSum float64

	if globalRatio != nil {
		p := *globalRatio / (1 + *globalRatio)
		sum += p * w.Global
		weightSum += w.Global
	}
	if takerRatio != nil {
		p := *takerRatio / (1 + *takerRatio)
		sum += p * w.Taker
		weightSum += w.Taker
	}
	if weightSum == 0 {
		return 50.00
	}

	avg := sum / weightSum

	if openInterest != nil {
		bump := sigmoid(*openInterest/oiScale-1) * (w.OpenInterest / 2)
		avg = math.Min(math.Max(avg+bump, 0), 1)
	}

	return round2(avg * 100)
}
