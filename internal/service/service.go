package service

import (
	"github.com/carson-networks/ingest-server/internal/storage"
)

// Service holds all business logic services.
type Service struct {
	Summary *SummaryService
}

// NewService creates a new Service with the given storage.
func NewService(store *storage.Storage) *Service {
	return &Service{
		Summary: NewSummaryService(store),
	}
}
