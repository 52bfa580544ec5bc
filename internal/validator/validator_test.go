package validator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Email    string      `json:"email" validate:"required,email"`
	Name     string      `json:"name" validate:"required,min=2,max=255"`
	Tel      string      `json:"tel" validate:"required,phone"`
	UserType string      `json:"user_type" validate:"required,oneof=company passenger"`
	Seats    int         `json:"max_passengers" validate:"gt=0"`
	Fees     json.Number `json:"fees" validate:"required,amount"`
	Bio      *string     `json:"bio" validate:"omitempty,max=5"`
}

func TestStructValid(t *testing.T) {
	v := New()
	errs := v.Struct(sampleRequest{
		Email:    "ops@air.test",
		Name:     "Sky",
		Tel:      "+20 (100) 000-111",
		UserType: "company",
		Seats:    3,
		Fees:     "49.99",
	})
	assert.Nil(t, errs)
}

func TestStructAccumulatesEveryField(t *testing.T) {
	v := New()
	bio := "far too long"
	errs := v.Struct(sampleRequest{
		Email:    "nope",
		Name:     "S",
		Tel:      "call me",
		UserType: "admin",
		Fees:     "1.234",
		Bio:      &bio,
	})
	require.NotNil(t, errs)
	assert.Equal(t, []string{"bio", "email", "fees", "max_passengers", "name", "tel", "user_type"}, errs.Fields())
	assert.Equal(t, []string{"name must be at least 2 characters"}, errs["name"])
	assert.Equal(t, []string{"user type must be one of: company, passenger"}, errs["user_type"])
	assert.Equal(t, []string{"max passengers must be greater than 0"}, errs["max_passengers"])
	assert.Equal(t, []string{"fees must be a positive amount with at most 2 decimal places"}, errs["fees"])
}

func TestStructRequired(t *testing.T) {
	v := New()
	errs := v.Struct(sampleRequest{Seats: 1})
	require.NotNil(t, errs)
	assert.Equal(t, []string{"email is required"}, errs["email"])
	assert.Equal(t, []string{"fees is required"}, errs["fees"])
}
