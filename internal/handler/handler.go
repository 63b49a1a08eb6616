package handler

import (
	"errors"
	"strconv"

	"mlmsystem/internal/repository"
	"mlmsystem/internal/service"
	"mlmsystem/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	userService     *service.UserService
	requestService  *service.PackageRequestService
	approvalService *service.ApprovalService
	rankService     *service.RankService
}

func NewHandler(userService *service.UserService, requestService *service.PackageRequestService,
	approvalService *service.ApprovalService, rankService *service.RankService) *Handler {
	return &Handler{
		userService:     userService,
		requestService:  requestService,
		approvalService: approvalService,
		rankService:     rankService,
	}
}

// 业务错误到响应码的映射，未匹配的按服务器错误处理
var errorCodes = []struct {
	err  error
	code int
}{
	{repository.ErrRequestNotFound, response.CodeRequestNotFound},
	{service.ErrRequestNotPending, response.CodeRequestNotPending},
	{repository.ErrUserNotFound, response.CodeUserNotFound},
	{service.ErrUserInactive, response.CodeUserInactive},
	{repository.ErrPackageNotFound, response.CodePackageNotFound},
	{service.ErrPackageInactive, response.CodePackageInactive},
	{repository.ErrDuplicateUsername, response.CodeDuplicateUsername},
	{service.ErrReferrerNotFound, response.CodeReferrerNotFound},
	{service.ErrInvalidUsername, response.CodeParamError},
	{service.ErrInvalidUserStatus, response.CodeParamError},
}

func writeError(c *gin.Context, err error) {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			response.BusinessError(c, m.code, err.Error())
			return
		}
	}
	response.ServerError(c, err.Error())
}

func queryInt64(c *gin.Context, key string) (int64, bool) {
	v, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil || v <= 0 {
		response.ParamError(c, key+" 参数错误")
		return 0, false
	}
	return v, true
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// ============================================================
// 会员相关接口
// ============================================================

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Referrer string `json:"referrer"`
}

// Register 注册会员
// POST /api/v1/user/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Username, req.Referrer)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}

// GetUser GET /api/v1/user/detail?user_id=xxx
func (h *Handler) GetUser(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}

// ListDownline GET /api/v1/user/downline?user_id=xxx
func (h *Handler) ListDownline(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}

	users, err := h.userService.ListDownline(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"list": users, "total": len(users)})
}

// ListRankChanges GET /api/v1/user/rank-history?user_id=xxx
func (h *Handler) ListRankChanges(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}

	changes, err := h.userService.ListRankChanges(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, changes)
}

type SetStatusRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Status string `json:"status" binding:"required"`
}

// SetUserStatus POST /api/v1/user/status
func (h *Handler) SetUserStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.userService.SetStatus(c.Request.Context(), req.UserID, req.Status); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"user_id": req.UserID, "status": req.Status})
}

// ListEarnings GET /api/v1/earning/list?user_id=xxx&page=1&page_size=20
func (h *Handler) ListEarnings(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	earnings, total, err := h.userService.ListEarnings(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":      earnings,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 等级与套餐
// ============================================================

// ListRanks GET /api/v1/rank/list
func (h *Handler) ListRanks(c *gin.Context) {
	ranks, err := h.rankService.ListRanks(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, ranks)
}

type RecomputeRankRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// RecomputeRank POST /api/v1/rank/recompute
func (h *Handler) RecomputeRank(c *gin.Context) {
	var req RecomputeRankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	change, err := h.rankService.Recompute(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"changed": change != nil, "change": change})
}

// ListPackages GET /api/v1/package/list
func (h *Handler) ListPackages(c *gin.Context) {
	pkgs, err := h.requestService.ListPackages(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, pkgs)
}

// ============================================================
// 套餐申请
// ============================================================

type CreatePackageRequest struct {
	RequestNo string `json:"request_no"` // 幂等号，客户端生成
	UserID    int64  `json:"user_id" binding:"required"`
	PackageID int64  `json:"package_id" binding:"required"`
}

// CreatePackageRequest POST /api/v1/package-request/create
func (h *Handler) CreatePackageRequest(c *gin.Context) {
	var req CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	pr, err := h.requestService.Submit(c.Request.Context(), &service.SubmitRequest{
		RequestNo: req.RequestNo,
		UserID:    req.UserID,
		PackageID: req.PackageID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, pr)
}

// GetPackageRequest GET /api/v1/package-request/detail?id=xxx
func (h *Handler) GetPackageRequest(c *gin.Context) {
	id, ok := queryInt64(c, "id")
	if !ok {
		return
	}

	pr, err := h.requestService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	earnings, err := h.requestService.ListEarnings(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"request": pr, "earnings": earnings})
}

// ListPackageRequests GET /api/v1/package-request/list?user_id=xxx&page=1&page_size=20
func (h *Handler) ListPackageRequests(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	reqs, total, err := h.requestService.ListUserRequests(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":      reqs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

type RequestIDBody struct {
	ID     int64  `json:"id" binding:"required"`
	Reason string `json:"reason"`
}

// ApprovePackageRequest 审核通过
// POST /api/v1/package-request/approve
//
// 失败时不会出现部分成功：要么全部生效，要么申请保持 pending。
func (h *Handler) ApprovePackageRequest(c *gin.Context) {
	var req RequestIDBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.approvalService.ApprovePackageRequest(c.Request.Context(), req.ID)
	if err != nil {
		if service.IsPrecondition(err) {
			writeError(c, err)
			return
		}
		response.BusinessError(c, response.CodeApprovalFailed, "审核失败，申请保持待审核: "+err.Error())
		return
	}
	response.Success(c, result)
}

// RejectPackageRequest POST /api/v1/package-request/reject
func (h *Handler) RejectPackageRequest(c *gin.Context) {
	var req RequestIDBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.requestService.Reject(c.Request.Context(), req.ID, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"id": req.ID, "status": "rejected"})
}
