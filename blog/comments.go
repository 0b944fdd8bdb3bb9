package blog

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"

	"blogicum/access"
	"blogicum/common"
	"blogicum/models"
)

type CommentForm struct {
	Text string `form:"text" binding:"required"`
}

// commentablePost loads the post named in the URL if the current user may see it.
func (b *BlogModule) commentablePost(c *gin.Context) (*models.Post, bool) {
	id, ok := parseID(c.Param("post_id"))
	if !ok {
		common.NotFound(c)
		return nil, false
	}
	post, err := b.findPost(c.Request.Context(), id)
	if err != nil {
		common.HandleError(c, err)
		return nil, false
	}
	if !access.CanView(post, common.CurrentUserID(c), b.now()) {
		common.NotFound(c)
		return nil, false
	}
	return post, true
}

func (b *BlogModule) renderCommentForm(c *gin.Context, status int, post *models.Post, comment *models.Comment, form CommentForm, errs common.FormErrors) {
	data := gin.H{
		"title":  "Comment",
		"post":   post,
		"form":   form,
		"errors": errs,
		"action": fmt.Sprintf("/%d/comment/", post.ID),
	}
	if comment != nil {
		data["comment"] = comment
		data["action"] = fmt.Sprintf("/%d/edit_comment/%d/", post.ID, comment.ID)
	}
	common.Render(c, status, "comment.html", data)
}

func bindComment(c *gin.Context) (CommentForm, common.FormErrors) {
	var form CommentForm
	errs := common.FormErrors{}
	if err := c.ShouldBind(&form); err != nil {
		return form, common.BindErrors(err)
	}
	if strings.TrimSpace(form.Text) == "" {
		errs.Add("text", "This field is required.")
	}
	return form, errs
}

func (b *BlogModule) commentPage(c *gin.Context) {
	post, ok := b.commentablePost(c)
	if !ok {
		return
	}
	b.renderCommentForm(c, http.StatusOK, post, nil, CommentForm{}, common.FormErrors{})
}

func (b *BlogModule) addComment(c *gin.Context) {
	post, ok := b.commentablePost(c)
	if !ok {
		return
	}

	form, errs := bindComment(c)
	if errs.Any() {
		b.renderCommentForm(c, http.StatusBadRequest, post, nil, form, errs)
		return
	}

	comment := models.Comment{
		PostID:   post.ID,
		AuthorID: common.CurrentUserID(c),
		Text:     form.Text,
	}
	if err := b.db.WithContext(c.Request.Context()).Omit(clause.Associations).Create(&comment).Error; err != nil {
		common.ServerError(c, err)
		return
	}
	b.invalidate(post.ID)

	c.Redirect(http.StatusFound, postPath(post.ID))
}

// commentContext returns the owned comment and its post for the edit and delete pages.
func (b *BlogModule) commentContext(c *gin.Context) (*models.Comment, *models.Post, bool) {
	comment := ownedComment(c)
	post, err := b.findPost(c.Request.Context(), comment.PostID)
	if err != nil {
		common.HandleError(c, err)
		return nil, nil, false
	}
	return comment, post, true
}

func (b *BlogModule) editCommentPage(c *gin.Context) {
	comment, post, ok := b.commentContext(c)
	if !ok {
		return
	}
	b.renderCommentForm(c, http.StatusOK, post, comment, CommentForm{Text: comment.Text}, common.FormErrors{})
}

func (b *BlogModule) editComment(c *gin.Context) {
	comment, post, ok := b.commentContext(c)
	if !ok {
		return
	}

	form, errs := bindComment(c)
	if errs.Any() {
		b.renderCommentForm(c, http.StatusBadRequest, post, comment, form, errs)
		return
	}

	if err := b.db.WithContext(c.Request.Context()).Model(&models.Comment{ID: comment.ID}).Update("text", form.Text).Error; err != nil {
		common.ServerError(c, err)
		return
	}
	b.invalidate(post.ID)

	c.Redirect(http.StatusFound, postPath(post.ID))
}

func (b *BlogModule) deleteCommentPage(c *gin.Context) {
	comment, post, ok := b.commentContext(c)
	if !ok {
		return
	}
	common.Render(c, http.StatusOK, "comment.html", gin.H{
		"title":   "Delete comment",
		"post":    post,
		"comment": comment,
		"delete":  true,
		"action":  fmt.Sprintf("/%d/delete_comment/%d/", post.ID, comment.ID),
	})
}

func (b *BlogModule) deleteComment(c *gin.Context) {
	comment := ownedComment(c)

	if err := b.db.WithContext(c.Request.Context()).Delete(&models.Comment{}, comment.ID).Error; err != nil {
		common.ServerError(c, err)
		return
	}
	b.invalidate(comment.PostID)

	c.Redirect(http.StatusFound, postPath(comment.PostID))
}
