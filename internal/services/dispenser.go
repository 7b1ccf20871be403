package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/ieraasyl/DispenserClient/internal/apiclient"
	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/ieraasyl/DispenserClient/internal/session"
	"github.com/ieraasyl/DispenserClient/pkg/apperrors"
	"github.com/ieraasyl/DispenserClient/pkg/cache"
	"github.com/rs/zerolog/log"
)

// DispenserService registers scanned devices and remembers the active one.
type DispenserService struct {
	api   API
	store session.Store
	key   string
}

// NewDispenserService creates a dispenser service persisting the active
// dispenser in store under namespace.
func NewDispenserService(api API, store session.Store, namespace string) *DispenserService {
	return &DispenserService{
		api:   api,
		store: store,
		key:   cache.ActiveDispenserKey(namespace),
	}
}

// NormalizeScan extracts the device uuid from a QR payload.
//
//	https://x/y?uuid=ABC  -> ABC
//	https://x/d/ABC       -> ABC   (no uuid parameter: last path segment)
//	foo uuid=ABC&bar      -> ABC
//	  ABC                 -> ABC
func NormalizeScan(raw string) string {
	t := strings.TrimSpace(raw)

	if len(t) >= 4 && strings.EqualFold(t[:4], "http") {
		u, err := url.Parse(t)
		if err != nil {
			return t
		}
		if v := strings.TrimSpace(u.Query().Get("uuid")); v != "" {
			return v
		}
		if last := strings.TrimSpace(path.Base(u.Path)); last != "" && last != "/" && last != "." {
			return last
		}
		return t
	}

	if _, after, ok := strings.Cut(t, "uuid="); ok {
		v, _, _ := strings.Cut(after, "&")
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return t
}

// Register sends the normalized scan to the backend and stores the uuid it
// confirms as the active dispenser. The local value is used only when the
// backend omits one.
func (s *DispenserService) Register(ctx context.Context, rawScan string) (string, error) {
	candidate := NormalizeScan(rawScan)
	if candidate == "" {
		return "", apperrors.Validation("scan did not contain a dispenser id")
	}

	resp, err := s.api.Send(ctx, http.MethodPost, pathDispensers, models.RegisterDispenserRequest{DispenserUUID: candidate})
	if err != nil {
		return "", err
	}
	if !resp.Success() {
		body := strings.TrimSpace(string(resp.Body))
		if msg := apiclient.ServerMessage(resp.Body); msg != "" {
			body = msg
		}
		log.Warn().Int("status", resp.StatusCode).Str("dispenser_uuid", candidate).Msg("Dispenser registration rejected")
		return "", &apperrors.RegistrationError{StatusCode: resp.StatusCode, Body: body}
	}

	var res models.RegisterDispenserResponse
	if err := resp.Decode(&res); err != nil {
		return "", err
	}

	uuid := strings.TrimSpace(res.DispenserUUID)
	if uuid == "" {
		uuid = candidate
	}

	if err := s.store.Set(ctx, s.key, uuid); err != nil {
		return "", fmt.Errorf("failed to persist active dispenser: %w", err)
	}

	log.Info().Str("dispenser_uuid", uuid).Msg("Dispenser registered")
	return uuid, nil
}

// Active returns the persisted active dispenser.
func (s *DispenserService) Active(ctx context.Context) (string, bool, error) {
	uuid, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		return "", false, fmt.Errorf("failed to read active dispenser: %w", err)
	}
	if !ok || strings.TrimSpace(uuid) == "" {
		return "", false, nil
	}
	return uuid, true, nil
}

// Forget clears the active dispenser.
func (s *DispenserService) Forget(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to clear active dispenser: %w", err)
	}
	return nil
}
