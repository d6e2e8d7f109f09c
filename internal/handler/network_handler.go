package handler

import (
	"net/http"
	"strconv"

	"ascend/internal/middleware"
	"ascend/internal/models"
	"ascend/internal/service"

	"github.com/gin-gonic/gin"
)

// NetworkHandler serves a member's view of their sponsor and placement trees
// and their rank standing.
type NetworkHandler struct {
	genealogy *service.GenealogyService
	placement *service.PlacementService
	binary    *service.BinaryService
	rank      *service.RankService
	plans     *service.PlanProvider
}

func NewNetworkHandler(
	genealogy *service.GenealogyService,
	placement *service.PlacementService,
	binary *service.BinaryService,
	rank *service.RankService,
	plans *service.PlanProvider,
) *NetworkHandler {
	return &NetworkHandler{
		genealogy: genealogy,
		placement: placement,
		binary:    binary,
		rank:      rank,
		plans:     plans,
	}
}

func depthQuery(c *gin.Context, def, max int) int {
	d, err := strconv.Atoi(c.DefaultQuery("depth", strconv.Itoa(def)))
	if err != nil || d < 1 {
		return def
	}
	if d > max {
		return max
	}
	return d
}

// Upline handles GET /me/upline?depth=N.
func (h *NetworkHandler) Upline(c *gin.Context) {
	userID := middleware.GetUserID(c)
	list, err := h.genealogy.Upline(c.Request.Context(), userID, depthQuery(c, 10, 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// Downline handles GET /me/downline?depth=N.
func (h *NetworkHandler) Downline(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	list, total, err := h.genealogy.Downline(c.Request.Context(), userID, depthQuery(c, 10, 100), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

// Placement handles GET /me/placement?depth=N: the member's node, its
// subtree, carryover and recent binary runs.
func (h *NetworkHandler) Placement(c *gin.Context) {
	userID := middleware.GetUserID(c)
	ctx := c.Request.Context()
	nodes, err := h.placement.Subtree(ctx, userID, depthQuery(c, 3, 10))
	if err != nil {
		respondError(c, err)
		return
	}
	carry, err := h.binary.Carryover(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	runs, err := h.binary.Runs(ctx, userID, 1, 10)
	if err != nil {
		respondError(c, err)
		return
	}
	var node *models.PlacementNode
	if len(nodes) > 0 {
		node = &nodes[0]
	}
	c.JSON(http.StatusOK, gin.H{
		"node":        node,
		"subtree":     nodes,
		"carryover":   carry,
		"binary_runs": runs,
	})
}

// Rank handles GET /me/rank: current rank, live metrics, the next tier and history.
func (h *NetworkHandler) Rank(c *gin.Context) {
	userID := middleware.GetUserID(c)
	ctx := c.Request.Context()
	user, err := h.rank.Standing(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	m, err := h.rank.Metrics(ctx, userID, h.plans.Current())
	if err != nil {
		respondError(c, err)
		return
	}
	ranks, err := h.rank.Ranks(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	var next *models.Rank
	for i := range ranks {
		if ranks[i].Level > user.RankLevel {
			next = &ranks[i]
		}
	}
	history, err := h.rank.History(ctx, userID, 20)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rank":       user.Rank,
		"rank_level": user.RankLevel,
		"metrics":    m,
		"next_rank":  next,
		"history":    history,
	})
}
