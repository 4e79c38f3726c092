package user

import (
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

const (
	maxUsernameLength = 150
	minPasswordLength = 8
)

var (
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
	numericPattern  = regexp.MustCompile(`^[0-9]+$`)
)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func validateRegistration(username, password, confirm string) error {
	var problems []string

	switch {
	case username == "":
		problems = append(problems, "Username is required.")
	case len(username) > maxUsernameLength:
		problems = append(problems, "Username must be 150 characters or fewer.")
	case !usernamePattern.MatchString(username):
		problems = append(problems, "Username may contain only letters, digits and @/./+/-/_ characters.")
	}

	if password != confirm {
		problems = append(problems, "The two password fields didn't match.")
	}
	if len(password) < minPasswordLength {
		problems = append(problems, "This password is too short. It must contain at least 8 characters.")
	}
	if numericPattern.MatchString(password) {
		problems = append(problems, "This password is entirely numeric.")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
