package backend

import "strings"

// RegisterDispenser binds uuid to owner and returns the canonical uuid.
// Registering the same device twice is idempotent for its owner.
func (s *Store) RegisterDispenser(owner, uuid string) (string, error) {
	uuid = strings.TrimSpace(uuid)
	if uuid == "" {
		return "", invalid("dispenserUuid is required")
	}
	canonical := strings.ToUpper(uuid)

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.dispensers[canonical]; ok && current != owner {
		return "", ErrDispenserClaimed
	}
	s.dispensers[canonical] = owner

	return canonical, nil
}

// ownsDispenser reports whether uuid is registered to owner. Callers hold mu.
func (s *Store) ownsDispenser(owner, uuid string) bool {
	return s.dispensers[strings.ToUpper(strings.TrimSpace(uuid))] == owner
}
