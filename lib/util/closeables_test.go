package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
)

func TestClosersReverseOrder(t *testing.T) {
	var cs Closers
	var order []string
	cs.AddFunc("first", func() error { order = append(order, "first"); return nil })
	cs.AddFunc("second", func() error { order = append(order, "second"); return nil })
	cs.Add("nil", nil)
	assert.Equal(t, 2, cs.Len())

	assert.NoError(t, cs.CloseAll())
	assert.Equal(t, []string{"second", "first"}, order)
	assert.Zero(t, cs.Len())
}

func TestClosersCombineErrors(t *testing.T) {
	var cs Closers
	errA, errB := errors.New("a"), errors.New("b")
	ran := false
	cs.AddFunc("a", func() error { return errA })
	cs.AddFunc("ok", func() error { ran = true; return nil })
	cs.AddFunc("b", func() error { return errB })

	err := cs.CloseAll()
	assert.True(t, ran)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestUserHomeNotEmpty(t *testing.T) {
	assert.NotEmpty(t, UserHome())
}
