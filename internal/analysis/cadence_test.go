package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCadenceDoublesLowRunningCadence(t *testing.T) {
	v := 85.0
	got := NormalizeCadence("Run", &v)
	require.NotNil(t, got)
	require.Equal(t, 170.0, *got)
}

func TestNormalizeCadenceKeepsFullCadence(t *testing.T) {
	v := 170.0
	got := NormalizeCadence("Run", &v)
	require.Equal(t, 170.0, *got)
}

func TestNormalizeCadenceLeavesNonRunningAlone(t *testing.T) {
	v := 85.0
	got := NormalizeCadence("Ride", &v)
	require.Equal(t, 85.0, *got)

	got = NormalizeCadence("Trail Walk", &v)
	require.Equal(t, 85.0, *got)
}

func TestNormalizeCadenceNilAndZeroPassThrough(t *testing.T) {
	require.Nil(t, NormalizeCadence("Run", nil))

	zero := 0.0
	got := NormalizeCadence("Run", &zero)
	require.Equal(t, 0.0, *got)
}

func TestIsRunningTypeKeywords(t *testing.T) {
	require.True(t, isRunningType("Morning Run"))
	require.True(t, isRunningType("Interval session"))
	require.False(t, isRunningType("Evening Ride"))
	// Non-run keywords win over run keywords.
	require.False(t, isRunningType("Run commute by bike"))
	require.False(t, isRunningType("Rowing"))
}

func TestNormalizeCadenceChannelDoublesWholeStream(t *testing.T) {
	in := []Sample{V(84), V(86), Null, V(85)}
	out := normalizeCadenceChannel("Run", in)
	require.Equal(t, 168.0, out[0].Value)
	require.Equal(t, 172.0, out[1].Value)
	require.False(t, out[2].Valid)
	require.Equal(t, 170.0, out[3].Value)
}

func TestNormalizeCadenceChannelKeepsFullStream(t *testing.T) {
	in := []Sample{V(168), V(172), V(170)}
	out := normalizeCadenceChannel("Run", in)
	require.Equal(t, 168.0, out[0].Value)
	require.Equal(t, 172.0, out[1].Value)
}
