package health

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping() error { return f.err }

func TestCheckHealthy(t *testing.T) {
	c := New(&fakePinger{}, "v1.0.0-test")

	report := c.Check()
	require.Equal(t, StatusHealthy, report.Status)
	require.Equal(t, StatusHealthy, report.Services["database"])
	require.Equal(t, StatusHealthy, report.Services["api"])
	require.Equal(t, "v1.0.0-test", report.Version)
}

func TestCheckUnhealthyOnPingFailure(t *testing.T) {
	c := New(&fakePinger{err: errors.New("connection refused")}, "v1.0.0-test")

	report := c.Check()
	require.Equal(t, StatusUnhealthy, report.Status)
	require.Equal(t, StatusUnhealthy, report.Services["database"])
}
