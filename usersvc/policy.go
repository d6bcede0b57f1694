package usersvc

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

const (
	MinPasswordLength = 6

	allowedUserNameChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._@+"
)

// ValidatePassword reports every password rule the candidate breaks.
func ValidatePassword(password string) []string {
	var (
		msgs                                   []string
		hasDigit, hasLower, hasUpper, hasOther bool
	)
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case !unicode.IsLetter(r):
			hasOther = true
		}
	}

	if len(password) < MinPasswordLength {
		msgs = append(msgs, fmt.Sprintf("Passwords must be at least %d characters.", MinPasswordLength))
	}
	if !hasOther {
		msgs = append(msgs, "Passwords must have at least one non alphanumeric character.")
	}
	if !hasDigit {
		msgs = append(msgs, "Passwords must have at least one digit ('0'-'9').")
	}
	if !hasLower {
		msgs = append(msgs, "Passwords must have at least one lowercase ('a'-'z').")
	}
	if !hasUpper {
		msgs = append(msgs, "Passwords must have at least one uppercase ('A'-'Z').")
	}
	return msgs
}

func ValidateUserName(username string) []string {
	if username == "" {
		return []string{"Username is required."}
	}
	for _, r := range username {
		if !strings.ContainsRune(allowedUserNameChars, r) {
			return []string{fmt.Sprintf("Username '%s' is invalid, can only contain letters or digits.", username)}
		}
	}
	return nil
}

func ValidateEmail(email string) []string {
	if email == "" {
		return []string{"Email is required."}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return []string{fmt.Sprintf("Email '%s' is invalid.", email)}
	}
	return nil
}
