package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAdvanceOnlyForwardEdges(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusFunding, StatusInTransit}:  true,
		{StatusInTransit, StatusArrived}:  true,
		{StatusArrived, StatusInspected}:  true,
		{StatusInspected, StatusReleased}: true,
		{StatusReleased, StatusSettled}:   true,
	}

	all := append(Statuses(), StatusUnknown)
	edges := 0
	for _, from := range all {
		for _, to := range all {
			got := CanAdvance(from, to)
			assert.Equal(t, allowed[[2]Status{from, to}], got, "%s → %s", from, to)
			if got {
				edges++
			}
		}
	}
	assert.Equal(t, 5, edges)
}

func TestCheckAdvanceError(t *testing.T) {
	err := CheckAdvance(StatusReleased, StatusArrived)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, "Invalid transition: Released → Arrived", err.Error())

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusReleased, te.From)
	assert.Equal(t, StatusArrived, te.To)

	assert.NoError(t, CheckAdvance(StatusArrived, StatusInspected))
}

func TestCheckManualAdvanceRejectsSettled(t *testing.T) {
	assert.ErrorIs(t, CheckManualAdvance(StatusReleased, StatusSettled), ErrInvalidTransition)
	assert.ErrorIs(t, CheckManualAdvance(StatusFunding, StatusCancelled), ErrInvalidTransition)
	assert.NoError(t, CheckManualAdvance(StatusInspected, StatusReleased))
}

func TestCancelOnlyFromFunding(t *testing.T) {
	for _, s := range Statuses() {
		assert.Equal(t, s == StatusFunding, CanCancel(s), s.String())
	}
	assert.False(t, CanAdvance(StatusFunding, StatusCancelled))
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusSettled.Terminal())
	assert.False(t, StatusReleased.Terminal())
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(StatusInspected)
	require.NoError(t, err)
	assert.JSONEq(t, `"Inspected"`, string(data))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"Released"`), &s))
	assert.Equal(t, StatusReleased, s)

	err = json.Unmarshal([]byte(`"released"`), &s)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = json.Marshal(StatusUnknown)
	assert.Error(t, err)
}

func TestParseStatusRoundTrip(t *testing.T) {
	for _, s := range Statuses() {
		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
}
