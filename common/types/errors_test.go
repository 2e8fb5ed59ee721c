package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiError(t *testing.T) {
	sentinel := errors.New("sentinel")
	multi := &MultiError{}
	assert.NoError(t, multi.ErrorOrNil())

	multi.Add(nil)
	assert.NoError(t, multi.ErrorOrNil())

	multi.Add(errors.New("first"))
	multi.Add(sentinel)
	err := multi.ErrorOrNil()
	assert.EqualError(t, err, "first; sentinel")
	assert.ErrorIs(t, err, sentinel)
}
