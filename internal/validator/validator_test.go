package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
	FullName string `validate:"required,min=2,max=100"`
	Duration string `validate:"omitempty,oneof=hour day week month"`
}

func TestValidatePassesCleanInput(t *testing.T) {
	rv := New()
	err := rv.Validate(&registerForm{
		Email:    "miner@example.com",
		Password: "longenough",
		FullName: "Test Miner",
		Duration: "week",
	})
	assert.NoError(t, err)
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	rv := New()
	err := rv.Validate(&registerForm{
		Email:    "not-an-email",
		Password: "short",
		Duration: "fortnight",
	})
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 4)

	byField := map[string]string{}
	for _, ve := range verrs {
		byField[ve.Field] = ve.Message
	}
	assert.Equal(t, "must be a valid email address", byField["Email"])
	assert.Equal(t, "must be at least 8", byField["Password"])
	assert.Equal(t, "is required", byField["FullName"])
	assert.Equal(t, "must be one of: hour day week month", byField["Duration"])
}

func TestValidationErrorsString(t *testing.T) {
	verrs := ValidationErrors{
		{Field: "Email", Message: "is required"},
		{Field: "Password", Message: "must be at least 8"},
	}
	assert.Equal(t, "Email: is required; Password: must be at least 8", verrs.Error())
	assert.Empty(t, ValidationErrors{}.Error())
}
