package pkg

import "golang.org/x/crypto/bcrypt"

const DefaultPasswordCost = 12

// HashPasswordWithCost hashes with an explicit bcrypt cost, DefaultPasswordCost outside of tests.
func HashPasswordWithCost(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
