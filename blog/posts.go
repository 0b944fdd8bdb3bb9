package blog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blogicum/common"
	"blogicum/database"
	"blogicum/models"
	"blogicum/web"
)

// PostForm is the create and edit form. Category and location use 0 for none.
type PostForm struct {
	Title       string `form:"title" binding:"required,max=256"`
	Text        string `form:"text" binding:"required"`
	PubDate     string `form:"pub_date" binding:"required"`
	LocationID  uint   `form:"location"`
	CategoryID  uint   `form:"category"`
	IsPublished string `form:"is_published"`
}

// pubDateLayouts are tried in order; the first is what browsers send.
var pubDateLayouts = []string{
	web.DateTimeLocalLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func formFromPost(post *models.Post) PostForm {
	form := PostForm{
		Title:   post.Title,
		Text:    post.Text,
		PubDate: post.PubDate.Local().Format(web.DateTimeLocalLayout),
	}
	if post.IsPublished {
		form.IsPublished = "true"
	}
	if post.LocationID != nil {
		form.LocationID = *post.LocationID
	}
	if post.CategoryID != nil {
		form.CategoryID = *post.CategoryID
	}
	return form
}

func published(raw string) bool {
	switch strings.ToLower(raw) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

func parsePubDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range pubDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// applyForm validates form and copies it onto post. It reports problems as
// field errors rather than failing.
func (b *BlogModule) applyForm(ctx context.Context, form PostForm, post *models.Post, errs common.FormErrors) error {
	title := strings.TrimSpace(form.Title)
	text := strings.TrimSpace(form.Text)
	if title == "" {
		errs.Add("title", "This field is required.")
	}
	if text == "" {
		errs.Add("text", "This field is required.")
	}

	pubDate, ok := parsePubDate(form.PubDate)
	if !ok && form.PubDate != "" {
		errs.Add("pub_date", "Enter a valid date/time.")
	}

	var categoryID, locationID *uint
	if form.CategoryID != 0 {
		var category models.Category
		err := b.db.WithContext(ctx).First(&category, form.CategoryID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			errs.Add("category", "Select a valid choice.")
		case err != nil:
			return err
		default:
			categoryID = &category.ID
		}
	}
	if form.LocationID != 0 {
		var location models.Location
		err := b.db.WithContext(ctx).First(&location, form.LocationID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			errs.Add("location", "Select a valid choice.")
		case err != nil:
			return err
		default:
			locationID = &location.ID
		}
	}

	post.Title = title
	post.Text = text
	post.PubDate = pubDate
	post.IsPublished = published(form.IsPublished)
	post.CategoryID = categoryID
	post.LocationID = locationID
	return nil
}

// bindPostForm binds the request and fills post. errs is empty when post is ready to save.
func (b *BlogModule) bindPostForm(c *gin.Context, post *models.Post) (PostForm, common.FormErrors, error) {
	var form PostForm
	errs := common.FormErrors{}
	if err := c.ShouldBind(&form); err != nil {
		errs = common.BindErrors(err)
	}
	if err := b.applyForm(c.Request.Context(), form, post, errs); err != nil {
		return form, errs, err
	}
	if errs.Any() {
		return form, errs, nil
	}

	image, err := b.saveImage(c)
	if err != nil {
		if !errs.AddAppError(err) {
			return form, errs, err
		}
		return form, errs, nil
	}
	if image != "" {
		post.Image = image
	}
	return form, errs, nil
}

func (b *BlogModule) renderPostForm(c *gin.Context, status int, form PostForm, errs common.FormErrors, post *models.Post) {
	ctx := c.Request.Context()

	var categories []models.Category
	var locations []models.Location
	if err := b.db.WithContext(ctx).Order("title").Find(&categories).Error; err != nil {
		common.ServerError(c, err)
		return
	}
	if err := b.db.WithContext(ctx).Order("name").Find(&locations).Error; err != nil {
		common.ServerError(c, err)
		return
	}

	data := gin.H{
		"title":      "New post",
		"form":       form,
		"errors":     errs,
		"categories": categories,
		"locations":  locations,
		"action":     "/create/",
	}
	if post != nil {
		data["title"] = "Edit post"
		data["post"] = post
		data["action"] = fmt.Sprintf("/%d/edit/", post.ID)
	}
	common.Render(c, status, "post_form.html", data)
}

func (b *BlogModule) createPage(c *gin.Context) {
	form := PostForm{PubDate: b.now().Local().Format(web.DateTimeLocalLayout), IsPublished: "true"}
	b.renderPostForm(c, http.StatusOK, form, common.FormErrors{}, nil)
}

func (b *BlogModule) createPost(c *gin.Context) {
	user := common.CurrentUser(c)
	post := models.Post{AuthorID: user.ID}

	form, errs, err := b.bindPostForm(c, &post)
	if err != nil {
		common.ServerError(c, err)
		return
	}
	if errs.Any() {
		b.renderPostForm(c, http.StatusBadRequest, form, errs, nil)
		return
	}

	if err := b.db.WithContext(c.Request.Context()).Omit(clause.Associations).Create(&post).Error; err != nil {
		common.ServerError(c, err)
		return
	}
	log.Printf("user %s created post %d", user.Username, post.ID)

	c.Redirect(http.StatusFound, "/profile/"+user.Username+"/")
}

func (b *BlogModule) editPage(c *gin.Context) {
	post := ownedPost(c)
	b.renderPostForm(c, http.StatusOK, formFromPost(post), common.FormErrors{}, post)
}

func (b *BlogModule) editPost(c *gin.Context) {
	post := ownedPost(c)
	previousImage := post.Image

	form, errs, err := b.bindPostForm(c, post)
	if err != nil {
		common.ServerError(c, err)
		return
	}
	if errs.Any() {
		b.renderPostForm(c, http.StatusBadRequest, form, errs, post)
		return
	}

	if err := b.db.WithContext(c.Request.Context()).Omit(clause.Associations).Save(post).Error; err != nil {
		if post.Image != previousImage {
			b.removeImage(post.Image)
		}
		common.ServerError(c, err)
		return
	}
	if post.Image != previousImage {
		b.removeImage(previousImage)
	}
	b.invalidate(post.ID)

	c.Redirect(http.StatusFound, postPath(post.ID))
}

func (b *BlogModule) deletePage(c *gin.Context) {
	post := ownedPost(c)
	common.Render(c, http.StatusOK, "post_delete.html", gin.H{
		"title": "Delete post",
		"post":  post,
	})
}

func (b *BlogModule) deletePost(c *gin.Context) {
	post := ownedPost(c)

	if err := database.DeletePost(c.Request.Context(), b.db, post.ID); err != nil {
		common.HandleError(c, err)
		return
	}
	b.removeImage(post.Image)
	b.invalidate(post.ID)
	log.Printf("post %d deleted by its author", post.ID)

	c.Redirect(http.StatusFound, "/profile/"+common.CurrentUser(c).Username+"/")
}
