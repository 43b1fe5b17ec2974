package sim

import "wavegen/internal/mathx"

// Stats summarises the periods of a logged waveform, measured rising edge
// to rising edge. Jitter is the spread between the shortest and longest
// period.
type Stats struct {
	Periods    int
	MeanPeriod uint32
	MinPeriod  uint32
	MaxPeriod  uint32
	MeanHigh   uint32
	// Duty in thousandths
	DutyPermil uint32
}

// Jitter returns MaxPeriod - MinPeriod
func (s Stats) Jitter() uint32 {
	return s.MaxPeriod - s.MinPeriod
}

// Measure computes Stats over edges of a single pin. Edges before the first
// rising edge are ignored, as is a trailing partial period.
func Measure(edges []Edge) Stats {
	var s Stats
	var sumPeriod, sumHigh uint64
	var rise, fall uint32
	haveRise, haveFall := false, false

	for _, e := range edges {
		if !e.High {
			if haveRise {
				fall, haveFall = e.Cycle, true
			}
			continue
		}
		if haveRise && haveFall {
			period := e.Cycle - rise
			high := fall - rise
			if s.Periods == 0 {
				s.MinPeriod, s.MaxPeriod = period, period
			}
			s.MinPeriod = mathx.Min(s.MinPeriod, period)
			s.MaxPeriod = mathx.Max(s.MaxPeriod, period)
			sumPeriod += uint64(period)
			sumHigh += uint64(high)
			s.Periods++
		}
		rise, haveRise, haveFall = e.Cycle, true, false
	}

	if s.Periods > 0 {
		s.MeanPeriod = uint32(sumPeriod / uint64(s.Periods))
		s.MeanHigh = uint32(sumHigh / uint64(s.Periods))
		s.DutyPermil = uint32(sumHigh * 1000 / sumPeriod)
	}
	return s
}
