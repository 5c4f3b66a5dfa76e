package auth

import (
	"fmt"

	"causeconnect/internal/utils"
)

const OTPLength = 6

// NewOTP returns a random six digit login code.
func NewOTP() (string, error) {
	code, err := utils.NumericCode(OTPLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return code, nil
}
