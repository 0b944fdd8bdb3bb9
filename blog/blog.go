package blog

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"blogicum/access"
	"blogicum/cache"
	"blogicum/common"
	"blogicum/models"
)

// Options configures a BlogModule. Zero values fall back to defaults.
type Options struct {
	PageSize int
	MediaDir string
	Cache    *cache.Store
	Now      func() time.Time
}

type BlogModule struct {
	db       *gorm.DB
	pageSize int
	mediaDir string
	cache    *cache.Store
	now      func() time.Time
}

func NewBlogModule(db *gorm.DB, opts Options) *BlogModule {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.MediaDir == "" {
		opts.MediaDir = "media"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &BlogModule{
		db:       db,
		pageSize: opts.PageSize,
		mediaDir: opts.MediaDir,
		cache:    opts.Cache,
		now:      opts.Now,
	}
}

func (b *BlogModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/", b.index)
	router.GET("/posts/:id/", b.cache.Middleware(b.detailCacheKey), b.detail)
	router.GET("/category/:slug/", b.category)
	router.GET("/profile/:username/", b.profile)

	router.GET("/create/", common.RequireAuth, b.createPage)
	router.POST("/create/", common.RequireAuth, b.createPost)

	ownPost := b.requireOwner(b.lookupPost)
	router.GET("/:post_id/edit/", common.RequireAuth, ownPost, b.editPage)
	router.POST("/:post_id/edit/", common.RequireAuth, ownPost, b.editPost)
	router.GET("/:post_id/delete/", common.RequireAuth, ownPost, b.deletePage)
	router.POST("/:post_id/delete/", common.RequireAuth, ownPost, b.deletePost)

	router.GET("/:post_id/comment/", common.RequireAuth, b.commentPage)
	router.POST("/:post_id/comment/", common.RequireAuth, b.addComment)

	ownComment := b.requireOwner(b.lookupComment)
	router.GET("/:post_id/edit_comment/:comment_id/", common.RequireAuth, ownComment, b.editCommentPage)
	router.POST("/:post_id/edit_comment/:comment_id/", common.RequireAuth, ownComment, b.editComment)
	router.GET("/:post_id/delete_comment/:comment_id/", common.RequireAuth, ownComment, b.deleteCommentPage)
	router.POST("/:post_id/delete_comment/:comment_id/", common.RequireAuth, ownComment, b.deleteComment)
}

// listing selects visible posts with their comment count.
const listingColumns = "posts.*, (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count"

// visiblePosts is the base query of every listing: posts viewerID may see.
func (b *BlogModule) visiblePosts(ctx context.Context, viewerID uint) *gorm.DB {
	return b.db.WithContext(ctx).Model(&models.Post{}).Scopes(access.VisibleTo(viewerID, b.now()))
}

// paginatePosts loads one page of base, newest publication date first.
func (b *BlogModule) paginatePosts(c *gin.Context, base *gorm.DB) ([]models.Post, common.Page, error) {
	var posts []models.Post
	page, err := common.Paginate(c, base, b.pageSize, func(q *gorm.DB) error {
		return q.Select(listingColumns).
			Preload("Author").
			Preload("Category").
			Preload("Location").
			Order("posts.pub_date DESC, posts.id DESC").
			Find(&posts).Error
	})
	return posts, page, err
}

func (b *BlogModule) index(c *gin.Context) {
	base := b.visiblePosts(c.Request.Context(), common.CurrentUserID(c))
	posts, page, err := b.paginatePosts(c, base)
	if err != nil {
		common.ServerError(c, err)
		return
	}

	common.Render(c, http.StatusOK, "index.html", gin.H{
		"title":     "Latest posts",
		"posts":     posts,
		"page":      page,
		"base_path": "/",
	})
}

func (b *BlogModule) category(c *gin.Context) {
	slug := c.Param("slug")

	var category models.Category
	err := b.db.WithContext(c.Request.Context()).
		Where("slug = ? AND is_published = ?", slug, true).
		First(&category).Error
	if err != nil {
		common.HandleError(c, err)
		return
	}

	base := b.visiblePosts(c.Request.Context(), common.CurrentUserID(c)).
		Where("posts.category_id = ?", category.ID)
	posts, page, err := b.paginatePosts(c, base)
	if err != nil {
		common.ServerError(c, err)
		return
	}

	common.Render(c, http.StatusOK, "category.html", gin.H{
		"title":     category.Title,
		"category":  category,
		"posts":     posts,
		"page":      page,
		"base_path": "/category/" + category.Slug + "/",
	})
}

func (b *BlogModule) profile(c *gin.Context) {
	var profile models.User
	err := b.db.WithContext(c.Request.Context()).
		Where("username = ?", c.Param("username")).
		First(&profile).Error
	if err != nil {
		common.HandleError(c, err)
		return
	}

	viewerID := common.CurrentUserID(c)
	base := b.visiblePosts(c.Request.Context(), viewerID).
		Where("posts.author_id = ?", profile.ID)
	posts, page, err := b.paginatePosts(c, base)
	if err != nil {
		common.ServerError(c, err)
		return
	}

	common.Render(c, http.StatusOK, "profile.html", gin.H{
		"title":     profile.FullName(),
		"profile":   profile,
		"is_owner":  viewerID == profile.ID,
		"posts":     posts,
		"page":      page,
		"base_path": "/profile/" + profile.Username + "/",
	})
}

func (b *BlogModule) detail(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		common.NotFound(c)
		return
	}

	viewerID := common.CurrentUserID(c)
	post, err := b.findPost(c.Request.Context(), id)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	if !access.CanView(post, viewerID, b.now()) {
		common.NotFound(c)
		return
	}

	var comments []models.Comment
	if err := b.db.WithContext(c.Request.Context()).
		Preload("Author").
		Where("post_id = ?", post.ID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error; err != nil {
		common.ServerError(c, err)
		return
	}

	common.Render(c, http.StatusOK, "detail.html", gin.H{
		"title":    post.Title,
		"post":     post,
		"comments": comments,
		"can_edit": access.CanMutate(post, viewerID),
	})
}

// detailCacheKey caches the post page for anonymous visitors only.
func (b *BlogModule) detailCacheKey(c *gin.Context) string {
	if common.CurrentUser(c) != nil {
		return ""
	}
	id, ok := parseID(c.Param("id"))
	if !ok {
		return ""
	}
	return postPath(id)
}

// invalidate drops the cached page of a post after it or its comments change.
func (b *BlogModule) invalidate(postID uint) {
	if err := b.cache.Clear(postPath(postID)); err != nil {
		log.Printf("cache clear for post %d: %v", postID, err)
	}
}

// findPost loads a post with the relations the visibility rule and templates need.
func (b *BlogModule) findPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := b.db.WithContext(ctx).
		Preload("Author").
		Preload("Category").
		Preload("Location").
		First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func postPath(id uint) string {
	return fmt.Sprintf("/posts/%d/", id)
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
