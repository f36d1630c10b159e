package response

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Response codes follow the JSON contract of the web frontend:
// 0 means success, 1 a generic failure (wrong password, validation),
// 2 a not-found or conflict condition, 7 a forbidden registration.
const (
	CodeOK        = 0
	CodeFailed    = 1
	CodeConflict  = 2
	CodeForbidden = 7
)

type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func OK(message string) Response {
	return Response{Code: CodeOK, Message: message}
}

func Error(code int, message string) Response {
	return Response{Code: code, Message: message}
}

func ErrorWithData(code int, message string, data any) Response {
	return Response{Code: code, Message: message, Data: data}
}

func ValidationError(errs validator.ValidationErrors) Response {
	msgs := make([]string, 0, len(errs))

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", err.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s is not a valid email", err.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s is too short", err.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s is too long", err.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is invalid", err.Field()))
		}
	}

	return Response{Code: CodeFailed, Message: strings.Join(msgs, ", ")}
}
