package blog

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"blogicum/access"
	"blogicum/common"
	"blogicum/models"
)

const resourceKey = "owned_resource"

// requireOwner loads the resource named in the URL and lets the request
// through only for its author. Anyone else is sent back to the post page.
func (b *BlogModule) requireOwner(lookup func(c *gin.Context) (access.Owned, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		resource, err := access.Authorize(c.Request.Context(), common.CurrentUserID(c), func(_ context.Context) (access.Owned, error) {
			return lookup(c)
		})
		switch {
		case err == nil:
			c.Set(resourceKey, resource)
			c.Next()
		case models.IsPermissionDenied(err):
			c.Redirect(http.StatusFound, "/posts/"+c.Param("post_id")+"/")
			c.Abort()
		default:
			common.HandleError(c, err)
			c.Abort()
		}
	}
}

func (b *BlogModule) lookupPost(c *gin.Context) (access.Owned, error) {
	id, ok := parseID(c.Param("post_id"))
	if !ok {
		return nil, models.NewNotFoundError("post", c.Param("post_id"))
	}
	post, err := b.findPost(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// lookupComment only finds comments that belong to the post in the URL.
func (b *BlogModule) lookupComment(c *gin.Context) (access.Owned, error) {
	postID, ok := parseID(c.Param("post_id"))
	if !ok {
		return nil, models.NewNotFoundError("post", c.Param("post_id"))
	}
	commentID, ok := parseID(c.Param("comment_id"))
	if !ok {
		return nil, models.NewNotFoundError("comment", c.Param("comment_id"))
	}

	var comment models.Comment
	err := b.db.WithContext(c.Request.Context()).
		Preload("Author").
		Where("id = ? AND post_id = ?", commentID, postID).
		First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func ownedPost(c *gin.Context) *models.Post {
	return c.MustGet(resourceKey).(*models.Post)
}

func ownedComment(c *gin.Context) *models.Comment {
	return c.MustGet(resourceKey).(*models.Comment)
}
