package guardian

import (
	"context"
	"log"
	"time"

	"pickup/internal/queue"
)

// Service implements the guardian authorization registry. Every mutation is
// published to the audit queue best-effort; a failed publish never fails the
// mutation itself.
type Service struct {
	repo Repository
	// events may be nil in tests.
	events queue.Queue
	// maxAuthorized caps authorized-pickup guardians per student; 0 means
	// unbounded.
	maxAuthorized int
}

// NewService creates a registry service.
func NewService(repo Repository, events queue.Queue, maxAuthorized int) *Service {
	return &Service{repo: repo, events: events, maxAuthorized: maxAuthorized}
}

// IsAuthorized reports whether personID may pick up studentID.
func (s *Service) IsAuthorized(ctx context.Context, studentID, personID string) (bool, error) {
	link, err := s.repo.GetLink(ctx, studentID, personID)
	if err != nil {
		if err == ErrLinkNotFound {
			return false, nil
		}
		return false, err
	}
	return link.IsAuthorizedPickup, nil
}

// IsGuardian reports whether personID is linked to studentID at all,
// regardless of pickup authorization. Guest delegation only needs this.
func (s *Service) IsGuardian(ctx context.Context, studentID, personID string) (bool, error) {
	_, err := s.repo.GetLink(ctx, studentID, personID)
	if err != nil {
		if err == ErrLinkNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AuthorizedGuardianIDs returns the guardians whose sign-off a guest pickup
// may request.
func (s *Service) AuthorizedGuardianIDs(ctx context.Context, studentID string) ([]string, error) {
	links, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, l := range links {
		if l.IsAuthorizedPickup {
			ids = append(ids, l.GuardianID)
		}
	}
	return ids, nil
}

// Add registers a guardian for a student.
func (s *Service) Add(ctx context.Context, actorID string, link Link) error {
	if link.IsAuthorizedPickup {
		if err := s.checkLimit(ctx, link.StudentID); err != nil {
			return err
		}
	}
	if err := s.repo.InsertLink(ctx, link); err != nil {
		return err
	}
	s.publish(ctx, Change{ActorID: actorID, Action: "guardian.add", StudentID: link.StudentID, GuardianID: link.GuardianID, At: time.Now().UTC()})
	return nil
}

// Revoke removes a guardian link. Pending pickup requests authored by the
// revoked guardian are left untouched; staff reject them case by case.
func (s *Service) Revoke(ctx context.Context, actorID, studentID, guardianID string) error {
	if err := s.repo.DeleteLink(ctx, studentID, guardianID); err != nil {
		return err
	}
	s.publish(ctx, Change{ActorID: actorID, Action: "guardian.revoke", StudentID: studentID, GuardianID: guardianID, At: time.Now().UTC()})
	return nil
}

// SetAuthorizedPickup grants or withdraws pickup authorization on an
// existing link.
func (s *Service) SetAuthorizedPickup(ctx context.Context, actorID, studentID, guardianID string, authorized bool) error {
	if authorized {
		link, err := s.repo.GetLink(ctx, studentID, guardianID)
		if err != nil {
			return err
		}
		if !link.IsAuthorizedPickup {
			if err := s.checkLimit(ctx, studentID); err != nil {
				return err
			}
		}
	}
	if err := s.repo.SetAuthorizedPickup(ctx, studentID, guardianID, authorized); err != nil {
		return err
	}
	action := "guardian.authorize_pickup"
	if !authorized {
		action = "guardian.revoke_pickup"
	}
	s.publish(ctx, Change{ActorID: actorID, Action: action, StudentID: studentID, GuardianID: guardianID, At: time.Now().UTC()})
	return nil
}

// ListForStudent returns all links for a student.
func (s *Service) ListForStudent(ctx context.Context, studentID string) ([]Link, error) {
	return s.repo.ListByStudent(ctx, studentID)
}

func (s *Service) checkLimit(ctx context.Context, studentID string) error {
	if s.maxAuthorized <= 0 {
		return nil
	}
	n, err := s.repo.CountAuthorized(ctx, studentID)
	if err != nil {
		return err
	}
	if n >= s.maxAuthorized {
		return ErrAuthorizedLimit
	}
	return nil
}

func (s *Service) publish(ctx context.Context, change Change) {
	if s.events == nil {
		return
	}
	msg, err := change.Message()
	if err != nil {
		log.Printf("encode guardian change failed: %v", err)
		return
	}
	if err := s.events.Publish(ctx, msg); err != nil {
		log.Printf("publish guardian change failed: %v", err)
	}
}
