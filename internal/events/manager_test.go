package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestManagerEmitPublishesToBus tests that Manager.Emit reaches bus subscribers
func TestManagerEmitPublishesToBus(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	var got *Event
	bus.Subscribe(DiscoveryCompleted, func(e *Event) { got = e })

	manager.Emit(DiscoveryCompleted, "pipeline", map[string]interface{}{
		"base_value": float64(5250),
		"source":     "discovered",
	})

	require.NotNil(t, got)
	assert.Equal(t, DiscoveryCompleted, got.Type)
	assert.Equal(t, "pipeline", got.Module)
	assert.Equal(t, float64(5250), got.Data["base_value"])
	assert.Equal(t, "discovered", got.Data["source"])
}

// TestManagerEmitTyped tests typed emission and recovery via GetTypedData
func TestManagerEmitTyped(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	var got *Event
	bus.Subscribe(ValuationCompleted, func(e *Event) { got = e })

	manager.EmitTyped(ValuationCompleted, "pipeline", &ValuationCompletedData{
		ReportID:      "report-1",
		Vehicle:       "2014 chevrolet malibu",
		BaseValue:     8000,
		AdjustedValue: 4200,
		FlipScore:     35,
		DataSource:    "discovered",
	})

	require.NotNil(t, got)
	assert.Equal(t, "report-1", got.Data["report_id"])
	assert.Equal(t, float64(4200), got.Data["adjusted_value"])

	typed := got.GetTypedData()
	require.NotNil(t, typed)
	data, ok := typed.(*ValuationCompletedData)
	require.True(t, ok)
	assert.Equal(t, "2014 chevrolet malibu", data.Vehicle)
	assert.Equal(t, 8000.0, data.BaseValue)
	assert.Equal(t, 4200.0, data.AdjustedValue)
	assert.Equal(t, 35, data.FlipScore)
	assert.Equal(t, "discovered", data.DataSource)
}

// TestManagerEmitError tests error event emission
func TestManagerEmitError(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	var got *Event
	bus.Subscribe(ErrorOccurred, func(e *Event) { got = e })

	manager.EmitError("pipeline", errors.New("provider unavailable"), map[string]interface{}{
		"vehicle": "2014 chevrolet malibu",
	})

	require.NotNil(t, got)
	assert.Equal(t, ErrorOccurred, got.Type)
	assert.Equal(t, "provider unavailable", got.Data["error"])

	typed := got.GetTypedData()
	require.NotNil(t, typed)
	data, ok := typed.(*ErrorEventData)
	require.True(t, ok)
	assert.Equal(t, "provider unavailable", data.Error)
	assert.Equal(t, "2014 chevrolet malibu", data.Context["vehicle"])
}

// TestGetTypedDataJobEvents tests the shared job data type across job event types
func TestGetTypedDataJobEvents(t *testing.T) {
	for _, eventType := range []EventType{JobStarted, JobCompleted, JobFailed} {
		event := &Event{
			Type: eventType,
			Data: map[string]interface{}{
				"job_type": "cache_cleanup",
				"status":   "completed",
			},
		}

		typed := event.GetTypedData()
		require.NotNil(t, typed, string(eventType))
		data, ok := typed.(*JobStatusData)
		require.True(t, ok)
		assert.Equal(t, "cache_cleanup", data.JobType)
	}
}

// TestGetTypedDataNil tests that events without data yield no typed data
func TestGetTypedDataNil(t *testing.T) {
	event := &Event{Type: ValuationStarted}
	assert.Nil(t, event.GetTypedData())
}
