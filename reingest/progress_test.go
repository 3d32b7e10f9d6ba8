package reingest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 4, 2)

	tracker.Add(1, 0)
	assert.Empty(t, buf.String(), "ignored before Start")

	tracker.Start()
	tracker.Add(1, 0)
	assert.Empty(t, buf.String())
	tracker.Add(1, 1)
	assert.Contains(t, buf.String(), "2/4 (50.0%) - 1 failed")

	tracker.Add(5, 0)
	tracker.Finish()
	out := buf.String()
	assert.Contains(t, out, "4/4 (100.0%)")
	assert.True(t, out[len(out)-1] == '\n')
}
