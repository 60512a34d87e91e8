package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterCollectors(reg) })
	// second registration on the same registry must fail loudly
	require.Panics(t, func() { RegisterCollectors(reg) })
}

func TestObserveStore(t *testing.T) {
	before := testutil.ToFloat64(StoreOperations.WithLabelValues("list", "ok"))
	ObserveStore("list", nil)
	require.Equal(t, before+1, testutil.ToFloat64(StoreOperations.WithLabelValues("list", "ok")))

	beforeErr := testutil.ToFloat64(StoreOperations.WithLabelValues("delete", "error"))
	ObserveStore("delete", errors.New("unavailable"))
	require.Equal(t, beforeErr+1, testutil.ToFloat64(StoreOperations.WithLabelValues("delete", "error")))
}
