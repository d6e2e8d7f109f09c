package repository

import (
	"time"

	"ascend/internal/domain"
	"ascend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// Upsert inserts the user or refreshes its identity fields. Engine-owned
// fields (activation, volume, rank, KYC) are never overwritten here.
func (r *UserRepository) Upsert(u *models.User) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "email", "updated_at"}),
	}).Create(u).Error
}

func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var u models.User
	err := r.db.First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetWithRank loads the user and its current rank.
func (r *UserRepository) GetWithRank(id uint) (*models.User, error) {
	var u models.User
	if err := r.db.Preload("Rank").First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Lock reads the user row FOR UPDATE.
func (r *UserRepository) Lock(id uint) (*models.User, error) {
	var u models.User
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByIDs(ids []uint) (map[uint]*models.User, error) {
	out := make(map[uint]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []models.User
	if err := r.db.Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out, nil
}

func (r *UserRepository) Activate(id uint, at time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": true, "activated_at": at}).Error
}

// AddPersonalVolume atomically increments the user's personal volume.
func (r *UserRepository) AddPersonalVolume(id uint, amount int64) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).
		UpdateColumn("personal_volume", gorm.Expr("personal_volume + ?", amount)).Error
}

// SetRank moves the user from fromLevel to level. It returns
// domain.ErrStaleRank when the stored level is no longer fromLevel.
func (r *UserRepository) SetRank(id uint, fromLevel int, rankID *uint, level int) error {
	res := r.db.Model(&models.User{}).Where("id = ? AND rank_level = ?", id, fromLevel).
		Updates(map[string]interface{}{"rank_id": rankID, "rank_level": level})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrStaleRank
	}
	return nil
}

func (r *UserRepository) SetKYC(id uint, approved bool, at *time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"kyc": approved, "kyc_approved_at": at}).Error
}

// CountActiveDirects counts the sponsor's direct recruits that are active and
// have at least minPV personal volume.
func (r *UserRepository) CountActiveDirects(sponsorID uint, minPV int64) (int, error) {
	var n int64
	err := r.db.Model(&models.User{}).
		Joins("JOIN sponsor_relations sr ON sr.user_id = users.id").
		Where("sr.sponsor_id = ? AND users.is_active = ? AND users.personal_volume >= ?", sponsorID, true, minPV).
		Count(&n).Error
	return int(n), err
}

// PageIDs returns up to limit user IDs greater than afterID in ascending
// order. Used for keyset iteration by sweeps.
func (r *UserRepository) PageIDs(afterID uint, limit int, rankedOnly bool) ([]uint, error) {
	q := r.db.Model(&models.User{}).Where("id > ?", afterID)
	if rankedOnly {
		q = q.Where("rank_level > ?", 0)
	}
	var ids []uint
	err := q.Order("id ASC").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}
