package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/epathshala/portal-api/internal/models"
)

// NewValidator returns a validator with the portal's custom tags registered.
//
//	role - one of ADMIN, STUDENT, TEACHER, PARENT (case-insensitive)
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseRole(fl.Field().String())
		return ok
	})
	return v
}
