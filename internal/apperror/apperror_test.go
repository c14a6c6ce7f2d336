package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfClassifiesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("projects.get"))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, IsNotFound(err))
}

func TestKindOfDefaultsToStore(t *testing.T) {
	assert.Equal(t, KindStore, KindOf(errors.New("driver exploded")))
}

func TestMessageNeverLeaksCause(t *testing.T) {
	err := Store("projects.list", errors.New("rpc error: connection refused to 10.0.0.3"))
	assert.Equal(t, MsgGeneral, Message(err))
	assert.NotContains(t, Message(err), "10.0.0.3")
}

func TestMessagePerKind(t *testing.T) {
	assert.Equal(t, MsgNotFound, Message(NotFound("op")))
	assert.Equal(t, MsgArchived, Message(Archived("op")))
	assert.Equal(t, MsgUnauthorized, Message(Unauthorized("op")))
	assert.Equal(t, MsgValidation, Message(Validation("op", nil)))
	assert.Equal(t, MsgGeneral, Message(Store("op", nil)))
}

func TestHTTPStatusPerKind(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("op")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Archived("op")))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(Unauthorized("op")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validation("op", nil)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("anything")))
}

func TestErrorStringKeepsOpAndCause(t *testing.T) {
	err := Store("tasks.create", errors.New("deadline exceeded"))
	assert.Equal(t, "tasks.create: deadline exceeded", err.Error())
	assert.Equal(t, "participations.edit: "+MsgUnauthorized, Unauthorized("participations.edit").Error())
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	assert.ErrorIs(t, Store("op", cause), cause)
}
