package handler

import (
	"net/http"
	"smart-journal-go/internal/middleware"
	"smart-journal-go/internal/service"
	"smart-journal-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ProfileHandler 负责个人资料统计与更新。
type ProfileHandler struct {
	profileService service.ProfileService
}

// NewProfileHandler 创建一个新的 ProfileHandler 实例。
func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// UpdateProfileRequest 是更新个人资料的请求体。
type UpdateProfileRequest struct {
	FullName string `json:"full_name"`
}

// Stats 返回日记总数与注册时间。
func (h *ProfileHandler) Stats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	stats, err := h.profileService.Stats(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Update 修改显示名称。
func (h *ProfileHandler) Update(c *gin.Context) {
	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.profileService.Update(c.Request.Context(), c.GetString(middleware.ContextKeyAccessToken), req.FullName)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Infof("用户 %s 更新了个人资料", user.ID)
	c.JSON(http.StatusOK, user)
}
