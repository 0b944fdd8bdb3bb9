package backoffice

import (
	"errors"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"blogicum/cache"
	"blogicum/common"
	"blogicum/database"
	"blogicum/models"
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

type BackofficeModule struct {
	db    *gorm.DB
	staff map[string]bool
	cache *cache.Store
}

// NewBackofficeModule grants access to the listed usernames only.
func NewBackofficeModule(db *gorm.DB, staff map[string]bool, pageCache *cache.Store) *BackofficeModule {
	return &BackofficeModule{db: db, staff: staff, cache: pageCache}
}

func (b *BackofficeModule) RegisterRoutes(router *gin.Engine) {
	staffGroup := router.Group("/staff", b.requireStaff)
	{
		staffGroup.GET("/categories/", b.listCategories)
		staffGroup.POST("/categories/", b.createCategory)
		staffGroup.POST("/categories/:id/toggle/", b.toggleCategory)
		staffGroup.DELETE("/categories/:id/", b.deleteCategory)

		staffGroup.GET("/locations/", b.listLocations)
		staffGroup.POST("/locations/", b.createLocation)
		staffGroup.POST("/locations/:id/toggle/", b.toggleLocation)
		staffGroup.DELETE("/locations/:id/", b.deleteLocation)

		staffGroup.POST("/clear-cache/", b.clearCache)
	}
}

func (b *BackofficeModule) requireStaff(c *gin.Context) {
	user := common.CurrentUser(c)
	if user == nil || !b.staff[user.Username] {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff access required"})
		return
	}
	c.Next()
}

// respondError maps an AppError code to a JSON status.
func respondError(c *gin.Context, err error) {
	var appErr *models.AppError
	errors.As(err, &appErr)

	switch models.CodeOf(err) {
	case models.CodeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case models.CodeValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": appErr.Message, "field": appErr.Field})
	case models.CodeIntegrity:
		body := gin.H{"error": "already exists"}
		if appErr != nil {
			body = gin.H{"error": appErr.Message, "field": appErr.Field}
		}
		c.JSON(http.StatusConflict, body)
	default:
		log.Printf("backoffice %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// clearPages drops every cached page; reference data shows up on all of them.
func (b *BackofficeModule) clearPages() {
	if err := b.cache.ClearAll(); err != nil {
		log.Printf("clear page cache: %v", err)
	}
}

func paramID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, models.NewNotFoundError(strings.TrimSuffix(c.FullPath(), "/"), c.Param("id"))
	}
	return uint(id), nil
}

type CategoryForm struct {
	Title       string `form:"title" json:"title" binding:"required,max=256"`
	Description string `form:"description" json:"description" binding:"required"`
	Slug        string `form:"slug" json:"slug" binding:"max=64"`
	IsPublished bool   `form:"is_published" json:"is_published"`
}

func (b *BackofficeModule) listCategories(c *gin.Context) {
	var categories []models.Category
	if err := b.db.WithContext(c.Request.Context()).Order("title").Find(&categories).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (b *BackofficeModule) createCategory(c *gin.Context) {
	var form CategoryForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": common.BindErrors(err)})
		return
	}

	slug := strings.TrimSpace(form.Slug)
	if slug == "" {
		slug = generateSlug(form.Title)
	}
	if slug == "" || !slugPattern.MatchString(slug) {
		respondError(c, models.NewValidationError("slug", "Enter a valid slug of letters, numbers, underscores or hyphens."))
		return
	}

	category := models.Category{
		Title:       strings.TrimSpace(form.Title),
		Description: form.Description,
		Slug:        slug,
		IsPublished: form.IsPublished,
	}
	if err := b.db.WithContext(c.Request.Context()).Create(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = models.NewIntegrityError("slug", "A category with this slug already exists.", err)
		}
		respondError(c, err)
		return
	}
	b.clearPages()

	c.JSON(http.StatusCreated, gin.H{"success": true, "category": category})
}

func (b *BackofficeModule) toggleCategory(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var category models.Category
	if err := b.db.WithContext(c.Request.Context()).First(&category, id).Error; err != nil {
		respondError(c, err)
		return
	}

	category.IsPublished = !category.IsPublished
	if err := b.db.WithContext(c.Request.Context()).Model(&category).Update("is_published", category.IsPublished).Error; err != nil {
		respondError(c, err)
		return
	}
	b.clearPages()

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"is_published": category.IsPublished,
	})
}

func (b *BackofficeModule) deleteCategory(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := database.DeleteCategory(c.Request.Context(), b.db, id); err != nil {
		respondError(c, err)
		return
	}
	b.clearPages()

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type LocationForm struct {
	Name        string `form:"name" json:"name" binding:"required,max=256"`
	IsPublished bool   `form:"is_published" json:"is_published"`
}

func (b *BackofficeModule) listLocations(c *gin.Context) {
	var locations []models.Location
	if err := b.db.WithContext(c.Request.Context()).Order("name").Find(&locations).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locations": locations})
}

func (b *BackofficeModule) createLocation(c *gin.Context) {
	var form LocationForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": common.BindErrors(err)})
		return
	}

	location := models.Location{Name: strings.TrimSpace(form.Name), IsPublished: form.IsPublished}
	if err := b.db.WithContext(c.Request.Context()).Create(&location).Error; err != nil {
		respondError(c, err)
		return
	}
	b.clearPages()

	c.JSON(http.StatusCreated, gin.H{"success": true, "location": location})
}

func (b *BackofficeModule) toggleLocation(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var location models.Location
	if err := b.db.WithContext(c.Request.Context()).First(&location, id).Error; err != nil {
		respondError(c, err)
		return
	}

	location.IsPublished = !location.IsPublished
	if err := b.db.WithContext(c.Request.Context()).Model(&location).Update("is_published", location.IsPublished).Error; err != nil {
		respondError(c, err)
		return
	}
	b.clearPages()

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"is_published": location.IsPublished,
	})
}

func (b *BackofficeModule) deleteLocation(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := database.DeleteLocation(c.Request.Context(), b.db, id); err != nil {
		respondError(c, err)
		return
	}
	b.clearPages()

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// clearCache empties the page cache on demand.
func (b *BackofficeModule) clearCache(c *gin.Context) {
	if err := b.cache.ClearAll(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "cache cleared",
	})
}
