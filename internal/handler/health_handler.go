package handler

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// HealthHandler 提供根路径、路由清单与最小的 OpenAPI 文档。
type HealthHandler struct {
	routes func() gin.RoutesInfo
	public map[string]bool
}

// NewHealthHandler 创建一个新的 HealthHandler。routes 通常传入 engine.Routes。
func NewHealthHandler(routes func() gin.RoutesInfo, publicPaths []string) *HealthHandler {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}
	return &HealthHandler{routes: routes, public: public}
}

// Root 返回服务状态。
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Smart Journal API is running"})
}

type routeDoc struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Public bool   `json:"public"`
}

func (h *HealthHandler) listRoutes() []routeDoc {
	var docs []routeDoc
	for _, r := range h.routes() {
		docs = append(docs, routeDoc{Method: r.Method, Path: r.Path, Public: h.public[r.Path]})
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Path == docs[j].Path {
			return docs[i].Method < docs[j].Method
		}
		return docs[i].Path < docs[j].Path
	})
	return docs
}

// Docs 列出所有已注册的路由。
func (h *HealthHandler) Docs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"routes": h.listRoutes()})
}

// OpenAPI 根据已注册的路由生成最小的 OpenAPI 3 文档。
func (h *HealthHandler) OpenAPI(c *gin.Context) {
	paths := gin.H{}
	for _, r := range h.listRoutes() {
		path := toOpenAPIPath(r.Path)
		item, ok := paths[path].(gin.H)
		if !ok {
			item = gin.H{}
			paths[path] = item
		}
		op := gin.H{"responses": gin.H{"200": gin.H{"description": "OK"}}}
		if !r.Public {
			op["security"] = []gin.H{{"bearerAuth": []string{}}}
		}
		item[strings.ToLower(r.Method)] = op
	}
	c.JSON(http.StatusOK, gin.H{
		"openapi": "3.0.3",
		"info":    gin.H{"title": "Smart Journal API", "version": "1.0.0"},
		"paths":   paths,
		"components": gin.H{
			"securitySchemes": gin.H{"bearerAuth": gin.H{"type": "http", "scheme": "bearer"}},
		},
	})
}

// toOpenAPIPath 把 gin 的 :param 形式转换为 {param}。
func toOpenAPIPath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		if strings.HasPrefix(part, ":") || strings.HasPrefix(part, "*") {
			parts[i] = "{" + part[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}
