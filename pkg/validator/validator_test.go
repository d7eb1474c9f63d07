package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type rsvpPayload struct {
	Status     string  `json:"status" validate:"required,enumci=GOING CANT_GO"`
	GuestCount int     `json:"guest_count" validate:"gte=0,lte=10"`
	VehicleID  *string `json:"vehicle_id" validate:"omitempty,uuid"`
}

type rejectPayload struct {
	Reason string `json:"reason" validate:"notblank"`
}

func TestValidateStructSuccess(t *testing.T) {
	require.NoError(t, ValidateStruct(rsvpPayload{Status: "going", GuestCount: 2}))
	require.NoError(t, ValidateStruct(rejectPayload{Reason: "duplicate account"}))
}

func TestValidateStructFailures(t *testing.T) {
	vehicle := "not-a-uuid"
	err := ValidateStruct(rsvpPayload{Status: "MAYBE", GuestCount: -1, VehicleID: &vehicle})
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 3)

	fields := map[string]string{}
	for _, v := range vErrs {
		fields[v.Field] = v.Tag
	}
	require.Equal(t, "enumci", fields["status"])
	require.Equal(t, "gte", fields["guest_count"])
	require.Equal(t, "uuid", fields["vehicle_id"])
	require.Contains(t, vErrs.Error(), "status failed on enumci=GOING CANT_GO")
}

func TestNotBlankRejectsWhitespace(t *testing.T) {
	err := ValidateStruct(rejectPayload{Reason: "   "})
	require.Error(t, err)
	require.Equal(t, "notblank", err.(ValidationErrors)[0].Tag)
}

func TestRegisterValidation(t *testing.T) {
	require.NoError(t, RegisterValidation("clubdomain", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "4-playersofcolorado.org"
	}))

	type payload struct {
		Domain string `json:"domain" validate:"clubdomain"`
	}
	require.NoError(t, ValidateStruct(payload{Domain: "4-playersofcolorado.org"}))
	require.Error(t, ValidateStruct(payload{Domain: "example.com"}))
}
