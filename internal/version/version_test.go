package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFprint(t *testing.T) {
	var buf bytes.Buffer
	Fprint(&buf, "carctl")
	assert.Contains(t, buf.String(), "carctl "+Version)
	assert.Contains(t, buf.String(), "commit "+Commit)
}
