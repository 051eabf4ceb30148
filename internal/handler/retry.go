package handler

import (
	"math"
	"math/rand"
	"time"
)

// BackoffType selects the dispatch retry curve.
type BackoffType int

const (
	BackoffNone BackoffType = iota
	BackoffFixed
	BackoffExp
	BackoffExpJitter
)

// RetryPolicy governs redelivery of an event whose dispatch failed. The zero
// value never retries; retry behavior is always an explicit caller choice.
type RetryPolicy struct {
	Type BackoffType
	// Base is the first delay; Cap bounds the computed delay.
	Base   time.Duration
	Cap    time.Duration
	Factor float64
	// MaxAttempts counts dispatch attempts, including the first. Zero with a
	// non-none type means retry without bound.
	MaxAttempts uint32
}

func computeBackoff(pol RetryPolicy, attempts uint32) time.Duration {
	switch pol.Type {
	case BackoffNone:
		return 0
	case BackoffFixed:
		if pol.Base <= 0 {
			return 0
		}
		if pol.Cap > 0 && pol.Base > pol.Cap {
			return pol.Cap
		}
		return pol.Base
	case BackoffExp, BackoffExpJitter:
		base := pol.Base
		if base <= 0 {
			base = 200 * time.Millisecond
		}
		factor := pol.Factor
		if factor <= 0 {
			factor = 2.0
		}
		d := time.Duration(float64(base) * math.Pow(factor, float64(attempts-1)))
		if pol.Cap > 0 && d > pol.Cap {
			d = pol.Cap
		}
		if pol.Type == BackoffExpJitter {
			if d <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(d)))
		}
		return d
	default:
		return 0
	}
}
