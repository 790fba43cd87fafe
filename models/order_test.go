package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTableExact(t *testing.T) {
	all := []OrderStatus{StatusPending, StatusProcessing, StatusShipping, StatusDelivered, StatusCancelled}

	allowed := map[OrderStatus]map[OrderStatus]bool{
		StatusPending:    {StatusProcessing: true, StatusCancelled: true},
		StatusProcessing: {StatusShipping: true, StatusCancelled: true},
		StatusShipping:   {StatusDelivered: true},
		StatusDelivered:  {},
		StatusCancelled:  {},
	}

	// 全量枚举：不在表内的组合一律拒绝
	for _, from := range all {
		for _, to := range all {
			got := from.CanTransitionTo(to)
			assert.Equal(t, allowed[from][to], got, "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoOutgoing(t *testing.T) {
	assert.Empty(t, StatusDelivered.AllowedNext())
	assert.Empty(t, StatusCancelled.AllowedNext())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, OrderStatus("shipped").Valid())
	assert.False(t, OrderStatus("").Valid())
}
