// Package testutil holds fixtures and helpers shared by the handler,
// middleware, session and service tests.
package testutil

import (
	"time"

	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/ieraasyl/DispenserClient/pkg/config"
)

// TestPassword satisfies the backend's password rules.
const TestPassword = "password123"

// TestJWTConfig returns a signing configuration valid for one hour.
func TestJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret: []byte("test-secret-key-minimum-32-bytes-long!"),
		Expiry: time.Hour,
	}
}

// TestSimulationConfig settles intakes on the third status read and fails
// profiles tagged FAIL_DISPENSE.
func TestSimulationConfig() config.SimulationConfig {
	return config.SimulationConfig{ReadsUntilDone: 3, FailTag: "FAIL_DISPENSE"}
}

// TestSignUpRequest creates a signup request with matching passwords.
func TestSignUpRequest(email string) models.SignUpRequest {
	return models.SignUpRequest{
		Email:           email,
		Password:        TestPassword,
		PasswordConfirm: TestPassword,
	}
}

// TestProfileRequest creates a 70 kg profile request with the given tags.
func TestProfileRequest(name string, tags ...string) models.CreateProfileRequest {
	if len(tags) == 0 {
		tags = []string{"ALCOHOL", "CAFFEINE", "STRESS"}
	}
	return models.CreateProfileRequest{
		Name:   name,
		Height: 170,
		Weight: 70,
		Gender: models.GenderFemale,
		Tags:   tags,
	}
}
