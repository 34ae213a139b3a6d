package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"document-vector-platform/internal/logger"
	"document-vector-platform/middleware"
	"document-vector-platform/services"
	"document-vector-platform/utils"
)

// SearchHandler serves semantic retrieval over the ingested corpus.
type SearchHandler struct {
	vectorizer *services.DocumentVectorizer
}

func NewSearchHandler(vectorizer *services.DocumentVectorizer) *SearchHandler {
	return &SearchHandler{vectorizer: vectorizer}
}

func (h *SearchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/search", h.Search)
	rg.POST("/pages", h.GetPages)
}

// Search runs a query against the summary and/or content vector spaces.
func (h *SearchHandler) Search(c *gin.Context) {
	owner := middleware.GetOwner(c)

	query := c.Query("q")
	if query == "" {
		utils.RespondWithBadRequest(c, "A query is required", gin.H{"param": "q"})
		return
	}

	mode := services.SearchMode(c.DefaultQuery("mode", string(services.SearchModeDual)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	results, err := h.vectorizer.Search(c.Request.Context(), query, mode, limit, owner)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSearchMode) {
			utils.RespondWithBadRequest(c, "Invalid search mode", gin.H{
				"mode":      string(mode),
				"supported": []string{"dual", "summary", "content"},
			})
			return
		}
		logger.Error("search failed", "owner", owner, "mode", string(mode), "error", err)
		utils.RespondWithInternalError(c, "Search failed", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"mode":    string(mode),
		"results": results,
	})
}

type pagesRequest struct {
	Filename string   `json:"filename" binding:"required"`
	Pages    []int    `json:"pages" binding:"required"`
	Fields   []string `json:"fields"`
}

// GetPages fetches selected fields for specific pages of a document.
func (h *SearchHandler) GetPages(c *gin.Context) {
	owner := middleware.GetOwner(c)

	var req pagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
		return
	}

	units, err := h.vectorizer.GetUnits(c.Request.Context(), req.Filename, req.Pages, req.Fields, owner)
	if err != nil {
		if errors.Is(err, services.ErrInvalidField) {
			utils.RespondWithBadRequest(c, "Invalid field requested", gin.H{
				"supported": []string{"filename", "page_number", "summary", "content", "owner"},
			})
			return
		}
		logger.Error("page fetch failed", "owner", owner, "filename", req.Filename, "error", err)
		utils.RespondWithInternalError(c, "Failed to fetch pages", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filename": req.Filename,
		"pages":    units,
	})
}
