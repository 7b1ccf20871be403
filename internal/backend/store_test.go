package backend

import (
	"testing"
	"time"

	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/ieraasyl/DispenserClient/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(config.SimulationConfig{ReadsUntilDone: 3, FailTag: "FAIL_DISPENSE"})
}

func validProfile(tags ...string) models.CreateProfileRequest {
	if len(tags) == 0 {
		tags = []string{"ALCOHOL", "CAFFEINE", "STRESS"}
	}
	return models.CreateProfileRequest{
		Name:   "Mina",
		Height: 162,
		Weight: 70,
		Gender: models.GenderFemale,
		Tags:   tags,
	}
}

func TestAccounts(t *testing.T) {
	store := newTestStore(t)

	account, err := store.SignUp(" Mina@Example.com ", "password1", "password1")
	require.NoError(t, err)
	assert.Equal(t, "mina@example.com", account.Email)
	assert.NotEqual(t, []byte("password1"), account.PasswordHash)

	_, err = store.SignUp("mina@example.com", "password1", "password1")
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := store.Authenticate("MINA@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	_, err = store.Authenticate("mina@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = store.Authenticate("nobody@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignUpValidation(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name, email, password, confirm string
	}{
		{"bad email", "not-an-email", "password1", "password1"},
		{"short password", "a@b.c", "short", "short"},
		{"mismatch", "a@b.c", "password1", "password2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.SignUp(tt.email, tt.password, tt.confirm)
			var ierr *InputError
			assert.ErrorAs(t, err, &ierr)
		})
	}
}

func TestProfilesAreScopedToOwner(t *testing.T) {
	store := newTestStore(t)

	p1, err := store.CreateProfile("owner-a", validProfile())
	require.NoError(t, err)
	p2, err := store.CreateProfile("owner-a", validProfile())
	require.NoError(t, err)
	_, err = store.CreateProfile("owner-b", validProfile())
	require.NoError(t, err)

	list := store.ListProfiles("owner-a")
	require.Len(t, list, 2)
	assert.Equal(t, []int64{p1.ID, p2.ID}, []int64{list[0].ID, list[1].ID})

	assert.ErrorIs(t, store.DeleteProfile("owner-b", p1.ID), ErrNotFound)
	require.NoError(t, store.DeleteProfile("owner-a", p1.ID))
	assert.ErrorIs(t, store.DeleteProfile("owner-a", p1.ID), ErrNotFound)
	assert.Len(t, store.ListProfiles("owner-a"), 1)
}

func TestCreateProfileValidation(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateProfile("o", validProfile("A", "A", "B"))
	var ierr *InputError
	require.ErrorAs(t, err, &ierr)
	assert.Contains(t, ierr.Reason, "3 distinct tags")

	req := validProfile()
	req.Gender = "OTHER"
	_, err = store.CreateProfile("o", req)
	assert.ErrorAs(t, err, &ierr)
}

func TestRegisterDispenser(t *testing.T) {
	store := newTestStore(t)

	uuid, err := store.RegisterDispenser("owner-a", " abc-1 ")
	require.NoError(t, err)
	assert.Equal(t, "ABC-1", uuid)

	// idempotent for the owner
	_, err = store.RegisterDispenser("owner-a", "ABC-1")
	require.NoError(t, err)

	_, err = store.RegisterDispenser("owner-b", "abc-1")
	assert.ErrorIs(t, err, ErrDispenserClaimed)
}

func TestIntakeSimulation(t *testing.T) {
	store := newTestStore(t)
	profile, err := store.CreateProfile("o", validProfile())
	require.NoError(t, err)
	_, err = store.RegisterDispenser("o", "d1")
	require.NoError(t, err)

	intake, err := store.CreateIntake("o", profile.ID, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.IntakeRequested, intake.Status)

	var statuses []models.IntakeStatus
	for i := 0; i < 5; i++ {
		got, err := store.ReadIntake("o", intake.IntakeID)
		require.NoError(t, err)
		statuses = append(statuses, got.Status)
	}
	assert.Equal(t, []models.IntakeStatus{
		models.IntakeProcessing, models.IntakeProcessing, models.IntakeSuccess,
		models.IntakeSuccess, models.IntakeSuccess,
	}, statuses)

	history := store.IntakeHistory("o", profile.ID, "D1")
	require.Equal(t, 1, history.Count)
	item := history.Items[0]
	require.NotNil(t, item.Vitamin)
	assert.Equal(t, 1.0, *item.Vitamin)
	assert.NotNil(t, item.CompletedAt)
	assert.Contains(t, *item.ProfileSnapshot, `"name":"Mina"`)
}

func TestIntakeFailTag(t *testing.T) {
	store := newTestStore(t)
	profile, err := store.CreateProfile("o", validProfile("A", "B", "FAIL_DISPENSE"))
	require.NoError(t, err)
	_, err = store.RegisterDispenser("o", "d1")
	require.NoError(t, err)

	intake, err := store.CreateIntake("o", profile.ID, "d1")
	require.NoError(t, err)

	var last models.Intake
	for i := 0; i < 3; i++ {
		last, err = store.ReadIntake("o", intake.IntakeID)
		require.NoError(t, err)
	}
	assert.Equal(t, models.IntakeFail, last.Status)

	item := store.IntakeHistory("o", profile.ID, "d1").Items[0]
	assert.Nil(t, item.Vitamin)
}

func TestIntakeOwnership(t *testing.T) {
	store := newTestStore(t)
	profile, err := store.CreateProfile("o", validProfile())
	require.NoError(t, err)

	_, err = store.CreateIntake("o", profile.ID, "d-unregistered")
	assert.ErrorIs(t, err, ErrUnknownDispenser)

	_, err = store.RegisterDispenser("o", "d1")
	require.NoError(t, err)

	_, err = store.CreateIntake("someone-else", profile.ID, "d1")
	assert.ErrorIs(t, err, ErrNotFound)

	intake, err := store.CreateIntake("o", profile.ID, "d1")
	require.NoError(t, err)
	_, err = store.ReadIntake("someone-else", intake.IntakeID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer(&config.JWTConfig{
		Secret: []byte("test-secret-key-min-32-bytes-long!!"),
		Expiry: time.Hour,
	})
	account := &Account{ID: "acc-1", Email: "a@b.c"}

	token, expiresAt, err := issuer.Issue(account)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "a@b.c", claims.Email)

	t.Run("rejects other secret", func(t *testing.T) {
		other := NewTokenIssuer(&config.JWTConfig{Secret: []byte("another-secret-key-min-32-bytes!!!"), Expiry: time.Hour})
		_, err := other.Validate(token)
		assert.Error(t, err)
	})

	t.Run("rejects expired", func(t *testing.T) {
		expired := NewTokenIssuer(&config.JWTConfig{Secret: []byte("test-secret-key-min-32-bytes-long!!"), Expiry: -time.Minute})
		old, _, err := expired.Issue(account)
		require.NoError(t, err)
		_, err = issuer.Validate(old)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := issuer.Validate("not.a.jwt")
		assert.Error(t, err)
	})
}
