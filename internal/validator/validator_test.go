package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestCustomValidators(t *testing.T) {
	v := validator.New()
	_ = v.RegisterValidation("symbol", validateSymbol)
	_ = v.RegisterValidation("iso_date", validateISODate)

	type input struct {
		Symbol string `validate:"required,symbol"`
		On     string `validate:"iso_date"`
	}

	t.Run("valid", func(t *testing.T) {
		for _, in := range []input{
			{Symbol: "AAPL"},
			{Symbol: "ggal.ba", On: "2024-01-05"},
			{Symbol: "^MERV", On: "2024-1-5"},
		} {
			if err := v.Struct(in); err != nil {
				t.Errorf("expected %+v to be valid: %v", in, err)
			}
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for _, in := range []input{
			{Symbol: "A B"},
			{Symbol: "AAPL", On: "05/01/2024"},
			{Symbol: "AAPL", On: "2024-13-01"},
		} {
			if err := v.Struct(in); err == nil {
				t.Errorf("expected %+v to be invalid", in)
			}
		}
	})
}
