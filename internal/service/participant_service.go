package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/repository"
)

// ParticipantService handles participant management.
type ParticipantService struct {
	participants ParticipantStore
	log          zerolog.Logger
}

// NewParticipantService creates a new ParticipantService.
func NewParticipantService(participants ParticipantStore, log zerolog.Logger) *ParticipantService {
	return &ParticipantService{
		participants: participants,
		log:          log.With().Str("component", "participant_service").Logger(),
	}
}

// List returns participants page by page.
func (s *ParticipantService) List(ctx context.Context, search string, page, perPage int) ([]model.Participant, int, error) {
	participants, total, err := s.participants.ListPaginated(ctx, strings.TrimSpace(search), perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list participants: %w", err)
	}
	if participants == nil {
		participants = []model.Participant{}
	}
	return participants, total, nil
}

// Create registers a participant.
func (s *ParticipantService) Create(ctx context.Context, req model.ParticipantRequest) (*model.Participant, error) {
	p := &model.Participant{Name: req.Name, Email: strings.ToLower(req.Email)}
	if err := s.participants.Create(ctx, p); err != nil {
		return nil, mapParticipantErr(err, "create participant")
	}
	return p, nil
}

// Update changes a participant's details.
func (s *ParticipantService) Update(ctx context.Context, id int, req model.ParticipantRequest) (*model.Participant, error) {
	p := &model.Participant{ID: id, Name: req.Name, Email: strings.ToLower(req.Email)}
	if err := s.participants.Update(ctx, p); err != nil {
		return nil, mapParticipantErr(err, "update participant")
	}
	return p, nil
}

// Delete removes a participant. Their recorded results are kept.
func (s *ParticipantService) Delete(ctx context.Context, id int) error {
	if err := s.participants.Delete(ctx, id); err != nil {
		return mapParticipantErr(err, "delete participant")
	}
	s.log.Info().Int("participant_id", id).Msg("Participant deleted")
	return nil
}

func mapParticipantErr(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrParticipantNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrDuplicateEmail
	}
	return fmt.Errorf("%s: %w", op, err)
}
