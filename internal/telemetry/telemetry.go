// Package telemetry holds the device telemetry model used to exercise the
// property runner end to end.
package telemetry

import (
	"fmt"
	"time"

	"github.com/nomagicln/propbridge/pkg/notation"
)

func init() {
	notation.DefaultRegistry.MustRegisterConstructor(NewNumeric, "DeviceID", "Property", "EnqueuedTime", "Time", "NumericValue")
	notation.DefaultRegistry.MustRegisterConstructor(NewSample, "NegMs", "DevID", "PropID")
}

// Record is one telemetry reading of a device property.
type Record struct {
	DeviceID     string
	Property     string
	EnqueuedTime time.Time
	Time         time.Time
	NumericValue int

	// Late is set by MarkLate.
	Late bool
}

// NewNumeric creates a numeric reading.
func NewNumeric(deviceID, property string, enqueuedTime, t time.Time, value int) Record {
	return Record{
		DeviceID:     deviceID,
		Property:     property,
		EnqueuedTime: enqueuedTime,
		Time:         t,
		NumericValue: value,
	}
}

// Delay is the time between the reading and its arrival.
func (r Record) Delay() time.Duration {
	return r.EnqueuedTime.Sub(r.Time)
}

// Sample is the generated shape of a record: how far the reading lags its
// enqueue time and which device and property it belongs to.
type Sample struct {
	NegMs  int
	DevID  int
	PropID int
}

// NewSample creates a sample.
func NewSample(negMs, devID, propID int) Sample {
	return Sample{NegMs: negMs, DevID: devID, PropID: propID}
}

// DefaultIncrementMs is the enqueue spacing used by CreateTelemetry.
const DefaultIncrementMs = 200

// CreateTelemetry turns samples into records enqueued incrementMs apart
// after start. A non-positive increment means DefaultIncrementMs.
func CreateTelemetry(samples []Sample, start time.Time, incrementMs int) []Record {
	if incrementMs <= 0 {
		incrementMs = DefaultIncrementMs
	}
	records := make([]Record, len(samples))
	for i, s := range samples {
		enqueued := start.Add(time.Duration((i+1)*incrementMs) * time.Millisecond)
		records[i] = NewNumeric(
			fmt.Sprintf("dev%d", s.DevID),
			fmt.Sprintf("prop%d", s.PropID),
			enqueued,
			enqueued.Add(-time.Duration(s.NegMs)*time.Millisecond),
			42,
		)
	}
	return records
}

// MarkLate returns a copy of records with Late set on every record whose
// delay exceeds threshold. Order and length are preserved.
func MarkLate(records []Record, threshold time.Duration) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		r.Late = r.Delay() > threshold
		out[i] = r
	}
	return out
}

// same compares records ignoring the Late annotation.
func same(a, b Record) bool {
	return a.DeviceID == b.DeviceID &&
		a.Property == b.Property &&
		a.EnqueuedTime.Equal(b.EnqueuedTime) &&
		a.Time.Equal(b.Time) &&
		a.NumericValue == b.NumericValue
}

// IsSupersetAndPreservesOrder reports an error unless every input record
// appears in results, in the same relative order.
func IsSupersetAndPreservesOrder(input, results []Record) error {
	j := 0
	for i, want := range input {
		for j < len(results) && !same(results[j], want) {
			j++
		}
		if j == len(results) {
			return fmt.Errorf("record %d (%s/%s at %s) missing or out of order", i, want.DeviceID, want.Property, want.EnqueuedTime.Format(time.RFC3339Nano))
		}
		j++
	}
	return nil
}

// CountEqual reports an error unless input and results have the same length.
func CountEqual(input, results []Record) error {
	if len(input) != len(results) {
		return fmt.Errorf("expected %d records, got %d", len(input), len(results))
	}
	return nil
}
