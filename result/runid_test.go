package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRunIDIsNonEmptyAndUnique(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	assert.NotEmpty(t, a)
	assert.NotEmpty(t, b)
	assert.NotEqual(t, a, b)
}
