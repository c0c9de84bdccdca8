package auth

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"sparkchat/errors"
)

var validate = validator.New()

// MaxUsernameLength bounds the identity carried in tokens and frames.
const MaxUsernameLength = 20

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateUsername enforces the accepted username alphabet.
func ValidateUsername(username string) error {
	if username == "" || !usernamePattern.MatchString(username) {
		return errors.ErrInvalidUsername
	}
	return nil
}

// TruncateUsername caps a valid username at the maximum length.
func TruncateUsername(username string) string {
	if len(username) > MaxUsernameLength {
		return username[:MaxUsernameLength]
	}
	return username
}

// SetupInfoRequest is the payload of POST /setup/info.
type SetupInfoRequest struct {
	Age       int      `json:"age" validate:"required,gte=18"`
	Gender    string   `json:"gender" validate:"required,oneof=male female"`
	Interests []string `json:"interests" validate:"required,min=1,dive,required"`
}

func ValidateSetupInfo(req SetupInfoRequest) error {
	return validate.Struct(req)
}

// SetupModeRequest is the payload of POST /setup/mode.
type SetupModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=chill date interests"`
}

func ValidateSetupMode(req SetupModeRequest) error {
	return validate.Struct(req)
}
