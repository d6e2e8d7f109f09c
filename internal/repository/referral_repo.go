package repository

import (
	"ascend/internal/models"

	"gorm.io/gorm"
)

// GenealogyRepository stores sponsor relations and their closure rows.
type GenealogyRepository struct {
	db *gorm.DB
}

func NewGenealogyRepository(db *gorm.DB) *GenealogyRepository {
	return &GenealogyRepository{db: db}
}

func (r *GenealogyRepository) WithTx(tx *gorm.DB) *GenealogyRepository {
	return &GenealogyRepository{db: tx}
}

// CreateRelation persists a new sponsor relationship.
func (r *GenealogyRepository) CreateRelation(rel *models.SponsorRelation) error {
	return r.db.Create(rel).Error
}

// GetRelation returns the sponsor relation of a user, or gorm.ErrRecordNotFound.
func (r *GenealogyRepository) GetRelation(userID uint) (*models.SponsorRelation, error) {
	var rel models.SponsorRelation
	err := r.db.Where("user_id = ?", userID).First(&rel).Error
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *GenealogyRepository) InsertClosures(rows []models.SponsorClosure) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.CreateInBatches(rows, 500).Error
}

// IsAncestor reports whether ancestorID is above descendantID in the sponsor tree.
func (r *GenealogyRepository) IsAncestor(ancestorID, descendantID uint) (bool, error) {
	var c int64
	err := r.db.Model(&models.SponsorClosure{}).
		Where("ancestor_id = ? AND descendant_id = ?", ancestorID, descendantID).
		Count(&c).Error
	return c > 0, err
}

// Ancestors returns closure rows above userID, nearest first. maxDepth <= 0
// means unlimited.
func (r *GenealogyRepository) Ancestors(userID uint, maxDepth int) ([]models.SponsorClosure, error) {
	q := r.db.Where("descendant_id = ?", userID)
	if maxDepth > 0 {
		q = q.Where("depth <= ?", maxDepth)
	}
	var list []models.SponsorClosure
	err := q.Order("depth ASC").Find(&list).Error
	return list, err
}

// Descendants returns closure rows below userID, shallowest first.
func (r *GenealogyRepository) Descendants(userID uint, maxDepth, limit, offset int) ([]models.SponsorClosure, error) {
	q := r.db.Where("ancestor_id = ?", userID)
	if maxDepth > 0 {
		q = q.Where("depth <= ?", maxDepth)
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	var list []models.SponsorClosure
	err := q.Order("depth ASC, descendant_id ASC").Find(&list).Error
	return list, err
}

// CountDescendants counts the whole downline of userID.
func (r *GenealogyRepository) CountDescendants(userID uint) (int64, error) {
	var c int64
	err := r.db.Model(&models.SponsorClosure{}).Where("ancestor_id = ?", userID).Count(&c).Error
	return c, err
}

// ListDirects returns the direct recruits of sponsorID with the user preloaded.
func (r *GenealogyRepository) ListDirects(sponsorID uint, limit, offset int) ([]models.SponsorRelation, error) {
	var list []models.SponsorRelation
	err := r.db.Where("sponsor_id = ?", sponsorID).
		Preload("User").
		Order("created_at ASC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}
