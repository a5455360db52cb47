package health

// Service reports liveness together with the active storage backend.
type Service struct {
	storage string
}

// NewService constructs a health service for the named storage backend.
func NewService(storage string) *Service {
	return &Service{storage: storage}
}

// Status returns the health payload.
func (s *Service) Status() map[string]any {
	return map[string]any{"ok": true, "storage": s.storage}
}
