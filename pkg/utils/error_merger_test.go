package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeErrorChans_ForwardsAll(t *testing.T) {
	ch1 := make(chan error, 1)
	ch2 := make(chan error, 1)

	merged := MergeErrorChans(ch1, ch2)

	ch1 <- errors.New("first")
	ch2 <- errors.New("second")
	close(ch1)
	close(ch2)

	var received []string
	for err := range merged {
		received = append(received, err.Error())
	}
	assert.ElementsMatch(t, []string{"first", "second"}, received)
}

func TestMergeErrorChans_ClosesWhenInputsClose(t *testing.T) {
	ch := make(chan error)
	merged := MergeErrorChans(ch)
	close(ch)

	select {
	case _, ok := <-merged:
		assert.False(t, ok, "merged channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("merged channel did not close")
	}
}
