package handler

import (
	"fmt"
	"net/http"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/repository"
	"smart-journal-go/internal/service"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// JournalHandler 负责日记的分析、创建、查询、删除与导出。
type JournalHandler struct {
	journalService service.JournalService
	exportService  service.ExportService
}

// NewJournalHandler 创建一个新的 JournalHandler 实例。
func NewJournalHandler(journalService service.JournalService, exportService service.ExportService) *JournalHandler {
	return &JournalHandler{journalService: journalService, exportService: exportService}
}

// EntryRequest 是分析与创建日记的请求体。
type EntryRequest struct {
	Content string `json:"content"`
}

// AnalyzeEntry 只分析不保存。
func (h *JournalHandler) AnalyzeEntry(c *gin.Context) {
	var req EntryRequest
	if !bindJSON(c, &req) {
		return
	}
	analysis, err := h.journalService.AnalyzeEntry(c.Request.Context(), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": service.StatusSuccess, "analysis": analysis})
}

// CreateEntry 保存并分析一篇日记。
func (h *JournalHandler) CreateEntry(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req EntryRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.journalService.CreateEntry(c.Request.Context(), user.ID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListEntries 按 search、start_date、end_date 筛选日记，按时间倒序返回。
func (h *JournalHandler) ListEntries(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	filter, err := parseEntryFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	entries, err := h.journalService.ListEntries(c.Request.Context(), user.ID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// DeleteEntry 删除一篇日记及其分析。
func (h *JournalHandler) DeleteEntry(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.journalService.DeleteEntry(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": service.StatusSuccess, "message": "Entry deleted successfully"})
}

// ExportEntries 导出筛选后的日记。配置了对象存储时返回下载链接，否则直接返回文件。
func (h *JournalHandler) ExportEntries(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	filter, err := parseEntryFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := h.exportService.Export(c.Request.Context(), user, c.DefaultQuery("format", "json"), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if result.URL != "" {
		c.JSON(http.StatusOK, result)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Body)
}

// parseEntryFilter 解析日期参数。end_date 包含当天，因此上界为次日零点。
func parseEntryFilter(c *gin.Context) (repository.EntryFilter, error) {
	filter := repository.EntryFilter{Search: strings.TrimSpace(c.Query("search"))}
	if s := strings.TrimSpace(c.Query("start_date")); s != "" {
		from, err := model.ParseDate(s)
		if err != nil {
			return filter, service.NewValidationError("invalid start_date: " + err.Error())
		}
		filter.From = &from
	}
	if s := strings.TrimSpace(c.Query("end_date")); s != "" {
		end, err := model.ParseDate(s)
		if err != nil {
			return filter, service.NewValidationError("invalid end_date: " + err.Error())
		}
		if filter.From != nil && end.Before(*filter.From) {
			return filter, service.NewValidationError("end_date cannot be before start_date")
		}
		until := end.Add(24 * time.Hour)
		filter.Until = &until
	}
	return filter, nil
}
