package repository

import (
	"ascend/internal/domain"
	"ascend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PlacementRepository struct {
	db *gorm.DB
}

func NewPlacementRepository(db *gorm.DB) *PlacementRepository {
	return &PlacementRepository{db: db}
}

func (r *PlacementRepository) WithTx(tx *gorm.DB) *PlacementRepository {
	return &PlacementRepository{db: tx}
}

func (r *PlacementRepository) GetByUserID(userID uint) (*models.PlacementNode, error) {
	var n models.PlacementNode
	err := r.db.Where("user_id = ?", userID).First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// LockByUserID reads the user's node FOR UPDATE.
func (r *PlacementRepository) LockByUserID(userID uint) (*models.PlacementNode, error) {
	var n models.PlacementNode
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *PlacementRepository) GetByID(id uint) (*models.PlacementNode, error) {
	var n models.PlacementNode
	err := r.db.First(&n, id).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *PlacementRepository) GetByIDs(ids []uint) ([]models.PlacementNode, error) {
	var list []models.PlacementNode
	if len(ids) == 0 {
		return list, nil
	}
	err := r.db.Where("id IN ?", ids).Find(&list).Error
	return list, err
}

// Root returns the parentless node, or gorm.ErrRecordNotFound on an empty tree.
func (r *PlacementRepository) Root() (*models.PlacementNode, error) {
	var n models.PlacementNode
	err := r.db.Where("parent_id IS NULL").First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *PlacementRepository) Count() (int64, error) {
	var c int64
	err := r.db.Model(&models.PlacementNode{}).Count(&c).Error
	return c, err
}

func (r *PlacementRepository) Create(n *models.PlacementNode) error {
	return r.db.Create(n).Error
}

func (r *PlacementRepository) SetPath(id uint, path string) error {
	return r.db.Model(&models.PlacementNode{}).Where("id = ?", id).UpdateColumn("path", path).Error
}

// ClaimSlot points parentID's leg at childID only if the slot is still empty.
// A lost race surfaces as domain.ErrSlotTaken.
func (r *PlacementRepository) ClaimSlot(parentID uint, leg string, childID uint) error {
	col := "left_child_id"
	if leg == domain.LegRight {
		col = "right_child_id"
	}
	res := r.db.Model(&models.PlacementNode{}).
		Where("id = ? AND "+col+" IS NULL", parentID).
		UpdateColumn(col, childID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrSlotTaken
	}
	return nil
}

// Subtree returns every node under (and including) the node whose path is
// prefix, shallowest first. maxDepth > 0 bounds the absolute depth.
func (r *PlacementRepository) Subtree(prefix string, maxDepth int) ([]models.PlacementNode, error) {
	q := r.db.Where("path LIKE ?", prefix+"%")
	if maxDepth > 0 {
		q = q.Where("depth <= ?", maxDepth)
	}
	var list []models.PlacementNode
	err := q.Order("depth ASC, id ASC").Find(&list).Error
	return list, err
}

// AddLegVolume atomically increments one leg counter of a node.
func (r *PlacementRepository) AddLegVolume(nodeID uint, leg string, amount int64) error {
	col := "left_volume"
	if leg == domain.LegRight {
		col = "right_volume"
	}
	return r.db.Model(&models.PlacementNode{}).Where("id = ?", nodeID).
		UpdateColumn(col, gorm.Expr(col+" + ?", amount)).Error
}

func (r *PlacementRepository) AddPersonalVolume(nodeID uint, amount int64) error {
	return r.db.Model(&models.PlacementNode{}).Where("id = ?", nodeID).
		UpdateColumn("personal_volume", gorm.Expr("personal_volume + ?", amount)).Error
}

// PageByID returns nodes in ID order for integrity walks.
func (r *PlacementRepository) PageByID(afterID uint, limit int) ([]models.PlacementNode, error) {
	var list []models.PlacementNode
	err := r.db.Where("id > ?", afterID).Order("id ASC").Limit(limit).Find(&list).Error
	return list, err
}
