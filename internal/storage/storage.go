package storage

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrPlayerExists    = errors.New("player already exists")
	ErrSessionNotFound = errors.New("session not found")
	ErrCaptchaNotFound = errors.New("captcha phrase not found")
)
