package storygraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusIdle, StatusRunning, StatusDone, StatusApproved, StatusError}
	allowed := map[[2]Status]bool{
		{StatusIdle, StatusRunning}:  true,
		{StatusRunning, StatusDone}:  true,
		{StatusRunning, StatusError}: true,
		{StatusRunning, StatusIdle}:  true,
		{StatusDone, StatusApproved}: true,
		{StatusDone, StatusIdle}:     true,
		{StatusApproved, StatusIdle}: true,
		{StatusError, StatusRunning}: true,
		{StatusError, StatusIdle}:    true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestIllegalTransitionError(t *testing.T) {
	n := &Node{ID: "n1", Status: StatusIdle}
	err := n.approve()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StatusIdle, te.From)
	assert.Equal(t, StatusApproved, te.To)
	assert.Equal(t, StatusIdle, n.Status)
}

func TestStartClearsErrorLog(t *testing.T) {
	n := &Node{ID: "n1", Status: StatusError, ErrorLog: "boom"}
	require.NoError(t, n.start())
	assert.Equal(t, StatusRunning, n.Status)
	assert.Empty(t, n.ErrorLog)
}

func TestCompleteKeepsLastImages(t *testing.T) {
	n := &Node{ID: "k", Type: TypeKeyImage, Status: StatusRunning, OutputImages: []string{"a", "b"}}
	require.NoError(t, n.complete(&Result{Images: []string{"c", "d"}}))
	assert.Equal(t, []string{"b", "c", "d"}, n.OutputImages)
	assert.Equal(t, StatusDone, n.Status)
}

func TestCompleteReplacesVideos(t *testing.T) {
	n := &Node{ID: "v", Type: TypeVideo, Status: StatusRunning, OutputVideos: []string{"old.mp4"}}
	require.NoError(t, n.complete(&Result{Videos: []string{"new.mp4"}}))
	assert.Equal(t, []string{"new.mp4"}, n.OutputVideos)
}

func TestFailAndReset(t *testing.T) {
	n := &Node{ID: "n", Status: StatusRunning, Output: strPtr("draft")}
	require.NoError(t, n.fail("timeout"))
	assert.Equal(t, StatusError, n.Status)
	assert.Equal(t, "timeout", n.ErrorLog)

	require.NoError(t, n.reset())
	assert.Equal(t, StatusIdle, n.Status)
	assert.Nil(t, n.Output)

	assert.ErrorIs(t, n.reset(), ErrIllegalTransition)
}
