// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"orgfolio/internal/date"
	"orgfolio/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("symbol", validateSymbol)
		_ = v.RegisterValidation("iso_date", validateISODate)
	}
}

func validateSymbol(fl validator.FieldLevel) bool {
	return models.ValidSymbol(fl.Field().String())
}

func validateISODate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := date.Parse(s)
	return err == nil
}
