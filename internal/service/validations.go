package service

import (
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Package for custom validations
var (
	validate *validator.Validate
	once     sync.Once
)

func InitValidator() {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterValidation("mood_label", func(fl validator.FieldLevel) bool {
			value := fl.Field().String()
			// Mood labels are free-form but must stay printable and short
			if utf8.RuneCountInString(value) > 60 {
				return false
			}
			for _, char := range value {
				if unicode.IsControl(char) {
					return false
				}
			}
			return true
		})
	})
}
