package errors_test

import (
	stderrors "errors"
	"testing"

	"codeberg.org/mutker/agxmon/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrInvalidState)
	assert.Equal(t, "Operation not allowed in current state", err.Error())
	assert.Equal(t, errors.ErrInvalidState, err.Code())

	err = errFactory.WithMessage(errors.ErrInvalidArgument, "port out of range")
	assert.Equal(t, "port out of range", err.Error())

	err = errFactory.WithData(errors.ErrParse, []string{"cpu"})
	assert.Equal(t, "Failed to parse message: [cpu]", err.Error())
}

func TestWrapAndHasCode(t *testing.T) {
	errFactory := errors.New()
	cause := stderrors.New("connection refused")

	inner := errFactory.Wrap(errors.ErrTransport, cause)
	outer := errFactory.Wrap(errors.ErrInitFailed, inner)

	assert.True(t, errors.HasCode(outer, errors.ErrInitFailed))
	assert.True(t, errors.HasCode(outer, errors.ErrTransport))
	assert.False(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.True(t, errors.Is(outer, cause))
	assert.False(t, errors.HasCode(cause, errors.ErrTransport))
	assert.False(t, errors.HasCode(nil, errors.ErrTransport))
}

func TestUnknownCodeMessage(t *testing.T) {
	err := errors.New().New(errors.ErrorCode("custom_code"))
	assert.Equal(t, "custom_code", err.Error())
}

func TestIsMatchesOnCode(t *testing.T) {
	errFactory := errors.New()
	err := errFactory.Wrap(errors.ErrTimeout, stderrors.New("lock"))

	assert.ErrorIs(t, err, errFactory.New(errors.ErrTimeout))
	assert.NotErrorIs(t, err, errFactory.New(errors.ErrParse))
}

func TestWithReturnsCopy(t *testing.T) {
	base := errors.New().Wrap(errors.ErrTransport, stderrors.New("refused"))
	annotated := base.WithMessage("dial failed").WithData("10.0.0.1:5000")

	assert.Equal(t, "Transport failure: refused", base.Error())
	assert.Nil(t, base.GetData())
	assert.Equal(t, "dial failed: 10.0.0.1:5000", annotated.Error())
	assert.True(t, errors.HasCode(annotated, errors.ErrTransport))
	assert.EqualError(t, annotated.Unwrap(), "refused")
}
