package apperr

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email  string `validate:"required,email"`
	Status string `validate:"oneof=pending accepted"`
}

func TestFromValidator_FieldErrors(t *testing.T) {
	err := validator.New().Struct(sample{Email: "nope", Status: "x"})
	require.Error(t, err)

	got := FromValidator(err)
	require.ErrorIs(t, got, Invalid)

	var ve *ValidationError
	require.True(t, errors.As(got, &ve))
	require.Len(t, ve.Fields, 2)
	require.Equal(t, "email", ve.Fields[0].Field)
	require.Equal(t, "must be a valid email", ve.Fields[0].Error)
	require.Equal(t, "status", ve.Fields[1].Field)
	require.Contains(t, ve.Fields[1].Error, "pending accepted")
}

func TestFromValidator_NilAndForeign(t *testing.T) {
	require.NoError(t, FromValidator(nil))
	require.ErrorIs(t, FromValidator(errors.New("boom")), Invalid)
}

func TestWrappedKindsStillMatch(t *testing.T) {
	err := errors.Wrap(NotFound, "get parcel")
	require.ErrorIs(t, err, NotFound)
	require.False(t, errors.Is(err, Conflict))
	require.ErrorIs(t, Field("email", "is required"), Invalid)
}

type input struct {
	SenderEmail string `json:"senderEmail" validate:"required,email"`
	NationalID  string `json:"nid" validate:"required"`
}

func TestValidate_UsesJSONNames(t *testing.T) {
	require.NoError(t, Validate(input{SenderEmail: "a@b.c", NationalID: "1"}))

	err := Validate(input{SenderEmail: "bad"})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, []FieldError{
		{Field: "senderEmail", Error: "must be a valid email"},
		{Field: "nid", Error: "is required"},
	}, ve.Fields)
}
