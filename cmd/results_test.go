package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/locate-qa/internal/model"
)

func TestFormatResults(t *testing.T) {
	var buf bytes.Buffer
	formatResults(&buf, []model.CategoryResult{
		{Category: "Excellent", PointsPassed: 7, PassRate: 70, MaxDistance: 5},
		{Category: "Good", PointsPassed: 2, PassRate: 20, MaxDistance: 15},
	})

	out := buf.String()
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "POINTS_PASSED")
	assert.Contains(t, out, "Excellent")
	assert.Contains(t, out, "70.0%")
	assert.Contains(t, out, "Good")
	assert.Contains(t, out, "15.0")
}
