package service

import (
	"context"
	"errors"

	"ascend/internal/domain"
	"ascend/internal/models"
	"ascend/internal/repository"

	"gorm.io/gorm"
)

// GenealogyService maintains the sponsor tree and its closure relation.
type GenealogyService struct {
	db        *gorm.DB
	genealogy *repository.GenealogyRepository
	users     *repository.UserRepository
}

func NewGenealogyService(db *gorm.DB, genealogy *repository.GenealogyRepository, users *repository.UserRepository) *GenealogyService {
	return &GenealogyService{db: db, genealogy: genealogy, users: users}
}

// Relative is one ancestor or descendant at a sponsor-tree distance.
type Relative struct {
	UserID uint `json:"user_id"`
	Depth  int  `json:"depth"`
}

func (s *GenealogyService) RegisterSponsor(ctx context.Context, userID, sponsorID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.registerSponsor(tx, userID, sponsorID)
	})
}

// registerSponsor inserts the direct edge and composes the closure: every
// ancestor of the sponsor (and the sponsor) becomes an ancestor of the user
// and of the user's existing downline.
func (s *GenealogyService) registerSponsor(tx *gorm.DB, userID, sponsorID uint) error {
	if userID == sponsorID {
		return domain.ErrSponsorCycle
	}
	genealogy := s.genealogy.WithTx(tx)
	users := s.users.WithTx(tx)

	if _, err := users.GetByID(userID); err != nil {
		return notFound(err, domain.ErrUserNotFound, "user %d", userID)
	}
	if _, err := users.GetByID(sponsorID); err != nil {
		return notFound(err, domain.ErrUserNotFound, "sponsor %d", sponsorID)
	}
	_, err := genealogy.GetRelation(userID)
	if err == nil {
		return domain.ErrDuplicateSponsor
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	cyclic, err := genealogy.IsAncestor(userID, sponsorID)
	if err != nil {
		return err
	}
	if cyclic {
		return domain.ErrSponsorCycle
	}

	if err := genealogy.CreateRelation(&models.SponsorRelation{UserID: userID, SponsorID: sponsorID}); err != nil {
		return err
	}

	above, err := genealogy.Ancestors(sponsorID, 0)
	if err != nil {
		return err
	}
	below, err := genealogy.Descendants(userID, 0, 0, 0)
	if err != nil {
		return err
	}
	ups := make([]Relative, 0, len(above)+1)
	ups = append(ups, Relative{UserID: sponsorID})
	for _, a := range above {
		ups = append(ups, Relative{UserID: a.AncestorID, Depth: a.Depth})
	}
	downs := make([]Relative, 0, len(below)+1)
	downs = append(downs, Relative{UserID: userID})
	for _, d := range below {
		downs = append(downs, Relative{UserID: d.DescendantID, Depth: d.Depth})
	}

	rows := make([]models.SponsorClosure, 0, len(ups)*len(downs))
	for _, a := range ups {
		for _, d := range downs {
			rows = append(rows, models.SponsorClosure{
				AncestorID:   a.UserID,
				DescendantID: d.UserID,
				Depth:        a.Depth + 1 + d.Depth,
			})
		}
	}
	return genealogy.InsertClosures(rows)
}

// Upline returns the user's ancestors nearest first. maxDepth <= 0 means
// the whole chain.
func (s *GenealogyService) Upline(ctx context.Context, userID uint, maxDepth int) ([]Relative, error) {
	rows, err := s.genealogy.WithTx(s.db.WithContext(ctx)).Ancestors(userID, maxDepth)
	if err != nil {
		return nil, err
	}
	out := make([]Relative, 0, len(rows))
	for _, r := range rows {
		out = append(out, Relative{UserID: r.AncestorID, Depth: r.Depth})
	}
	return out, nil
}

// Downline returns the user's descendants shallowest first, paginated.
func (s *GenealogyService) Downline(ctx context.Context, userID uint, maxDepth, page, limit int) ([]Relative, int64, error) {
	page, limit = pageArgs(page, limit)
	genealogy := s.genealogy.WithTx(s.db.WithContext(ctx))
	rows, err := genealogy.Descendants(userID, maxDepth, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := genealogy.CountDescendants(userID)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Relative, 0, len(rows))
	for _, r := range rows {
		out = append(out, Relative{UserID: r.DescendantID, Depth: r.Depth})
	}
	return out, total, nil
}

// SponsorOf returns the user's direct sponsor; ok is false for top-level users.
func (s *GenealogyService) SponsorOf(ctx context.Context, userID uint) (uint, bool, error) {
	rel, err := s.genealogy.WithTx(s.db.WithContext(ctx)).GetRelation(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rel.SponsorID, true, nil
}

// ActiveDirectCount counts active direct recruits with at least minPV.
func (s *GenealogyService) ActiveDirectCount(ctx context.Context, userID uint, minPV int64) (int, error) {
	return s.users.WithTx(s.db.WithContext(ctx)).CountActiveDirects(userID, minPV)
}
