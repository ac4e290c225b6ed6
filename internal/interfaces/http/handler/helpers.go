package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// bindingMessage flattens validator errors into one line.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request parameters"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" fails "+fe.Tag())
	}
	return "Invalid request parameters: " + strings.Join(parts, ", ")
}
