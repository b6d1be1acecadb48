package tuner

// Timer measures one candidate. StopTiming captures the span since the last
// StartTiming; AccumulateTiming stops and adds that span to a running total.
type Timer interface {
	StartTiming()
	StopTiming()
	AccumulateTiming()
	ClearTiming()
	ElapsedMicros() float64
	AccumulatedMicros() float64
}
