package auth

import (
	"github.com/pquerna/otp/totp"
)

// TwoFactorSecret holds a freshly generated TOTP secret and the otpauth URL
// the client renders as an enrolment QR code.
type TwoFactorSecret struct {
	Secret     string `json:"secret"`
	OtpauthURL string `json:"otpauthUrl"`
}

// GenerateTwoFactorSecret creates a TOTP secret bound to the given username.
func GenerateTwoFactorSecret(username string) (*TwoFactorSecret, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "cryptochat",
		AccountName: username,
	})
	if err != nil {
		return nil, err
	}
	return &TwoFactorSecret{
		Secret:     key.Secret(),
		OtpauthURL: key.URL(),
	}, nil
}

// VerifyTwoFactorCode checks a 6-digit code against the stored secret.
func VerifyTwoFactorCode(code, secret string) bool {
	return totp.Validate(code, secret)
}
