package pages

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"blogicum/access"
	"blogicum/common"
	"blogicum/models"
)

type PagesModule struct {
	db     *gorm.DB
	domain string
}

func NewPagesModule(db *gorm.DB, domain string) *PagesModule {
	if domain == "" {
		domain = "http://localhost"
	}
	return &PagesModule{db: db, domain: strings.TrimSuffix(domain, "/")}
}

func (p *PagesModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/pages/about/", p.about)
	router.GET("/pages/rules/", p.rules)
	router.GET("/sitemap.xml", p.sitemap)
	router.NoRoute(common.NotFound)
}

// Recovery renders the 500 page when a handler panics.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		common.ServerError(c, fmt.Errorf("panic: %v", recovered))
		c.Abort()
	})
}

func (p *PagesModule) about(c *gin.Context) {
	common.Render(c, http.StatusOK, "about.html", gin.H{"title": "About"})
}

func (p *PagesModule) rules(c *gin.Context) {
	common.Render(c, http.StatusOK, "rules.html", gin.H{"title": "Rules"})
}

func (p *PagesModule) sitemap(c *gin.Context) {
	ctx := c.Request.Context()

	var sitemap strings.Builder
	sitemap.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sitemap.WriteString("\n")
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	sitemap.WriteString("\n")

	p.writeURL(&sitemap, "/", time.Time{}, "daily", "1.0")
	p.writeURL(&sitemap, "/pages/about/", time.Time{}, "yearly", "0.3")
	p.writeURL(&sitemap, "/pages/rules/", time.Time{}, "yearly", "0.3")

	var categories []models.Category
	if err := p.db.WithContext(ctx).Where("is_published = ?", true).Order("slug").Find(&categories).Error; err != nil {
		common.ServerError(c, err)
		return
	}
	for _, category := range categories {
		p.writeURL(&sitemap, "/category/"+category.Slug+"/", time.Time{}, "weekly", "0.7")
	}

	var posts []models.Post
	if err := p.db.WithContext(ctx).Model(&models.Post{}).
		Scopes(access.Public(time.Now())).
		Select("posts.id, posts.pub_date").
		Order("posts.pub_date DESC").
		Find(&posts).Error; err != nil {
		common.ServerError(c, err)
		return
	}
	for _, post := range posts {
		p.writeURL(&sitemap, fmt.Sprintf("/posts/%d/", post.ID), post.PubDate, "monthly", "0.6")
	}

	sitemap.WriteString("</urlset>\n")

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, sitemap.String())
}

func (p *PagesModule) writeURL(sitemap *strings.Builder, path string, lastmod time.Time, changefreq, priority string) {
	sitemap.WriteString("  <url>\n")
	sitemap.WriteString("    <loc>" + p.domain + path + "</loc>\n")
	if !lastmod.IsZero() {
		sitemap.WriteString("    <lastmod>" + lastmod.UTC().Format(time.RFC3339) + "</lastmod>\n")
	}
	sitemap.WriteString("    <changefreq>" + changefreq + "</changefreq>\n")
	sitemap.WriteString("    <priority>" + priority + "</priority>\n")
	sitemap.WriteString("  </url>\n")
}
