package utils

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type ValidationService struct {
	validator *validator.Validate
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func NewValidationService() *ValidationService {
	v := validator.New()

	// Register custom validators
	v.RegisterValidation("ambulance_status", validateAmbulanceStatus)
	v.RegisterValidation("emergency_category", validateEmergencyCategory)

	return &ValidationService{
		validator: v,
	}
}

func (vs *ValidationService) ValidateStruct(s interface{}) []ValidationError {
	var validationErrors []ValidationError

	err := vs.validator.Struct(s)
	if err != nil {
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, ValidationError{
				Field:   err.Field(),
				Tag:     err.Tag(),
				Value:   fmt.Sprintf("%v", err.Value()),
				Message: vs.getErrorMessage(err),
			})
		}
	}

	return validationErrors
}

func (vs *ValidationService) getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "len":
		return fmt.Sprintf("%s must have exactly %s elements", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s exceeds maximum length %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s is below minimum %s", fe.Field(), fe.Param())
	case "ambulance_status":
		return fmt.Sprintf("%s must be one of offline, available, onDuty", fe.Field())
	case "emergency_category":
		return fmt.Sprintf("%s is not a recognized emergency category", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func validateAmbulanceStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "offline", "available", "onDuty":
		return true
	}
	return false
}

func validateEmergencyCategory(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "accident", "cardiac", "trauma", "breathing", "maternity", "other":
		return true
	}
	return false
}
