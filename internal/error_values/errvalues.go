package errorvalues

import "errors"

var (
	ErrUserExists       = errors.New("such user already exists")
	ErrEmailTaken       = errors.New("email already registered")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrUserNotFound     = errors.New("user doesn't exists")
	ErrWrongCredentials = errors.New("wrong name or password")
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrValidation       = errors.New("validation error")

	ErrTodoNotFound  = errors.New("todo doesn't exist")
	ErrOwnerNotFound = errors.New("todo owner doesn't exist")
	ErrInvalidStatus = errors.New("status must be one of TODO, DOING, DONE")
	ErrEmptyPatch    = errors.New("nothing to update")

	ErrCaptchaMissing = errors.New("missing captcha response")
	ErrCaptchaFailed  = errors.New("captcha verification failed")

	ErrOAuthState    = errors.New("oauth state mismatch")
	ErrOAuthDisabled = errors.New("oauth provider is not configured")
)
