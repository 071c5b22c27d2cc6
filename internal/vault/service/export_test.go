package service

import (
	"github.com/louisbranch/custody.space/internal/vault/domain"
)

// SetDefaults overrides the protocol trigger defaults in tests.
func (s *Service) SetDefaults(d domain.TriggerDefaults) {
	s.defaults = d
}
