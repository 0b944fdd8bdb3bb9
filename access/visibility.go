// Package access decides who may see a post and who may change a post or comment.
//
// A viewer ID of zero means an anonymous request.
package access

import (
	"time"

	"gorm.io/gorm"

	"blogicum/models"
)

const publicCondition = "posts.is_published = ? AND categories.is_published = ? AND posts.pub_date <= ?"

// CanView reports whether viewerID may see post at time now.
// Authors always see their own posts. Everyone else needs the post and its
// category published and the publication date reached. post.Category must be
// loaded; a post without a category is hidden from non-authors.
func CanView(post *models.Post, viewerID uint, now time.Time) bool {
	if post == nil {
		return false
	}
	if viewerID != 0 && post.AuthorID == viewerID {
		return true
	}
	return IsPublic(post, now)
}

// IsPublic reports whether post is visible to anonymous viewers at time now.
func IsPublic(post *models.Post, now time.Time) bool {
	return post.IsPublished &&
		post.Category != nil &&
		post.Category.IsPublished &&
		!post.PubDate.After(now)
}

// VisibleTo is the query form of CanView. It joins categories, so callers
// must qualify ambiguous columns with the posts table name.
func VisibleTo(viewerID uint, now time.Time) func(*gorm.DB) *gorm.DB {
	now = now.UTC()
	return func(db *gorm.DB) *gorm.DB {
		db = db.Joins("LEFT JOIN categories ON categories.id = posts.category_id")
		if viewerID == 0 {
			return db.Where(publicCondition, true, true, now)
		}
		return db.Where("posts.author_id = ? OR ("+publicCondition+")", viewerID, true, true, now)
	}
}

// Public is VisibleTo for an anonymous viewer.
func Public(now time.Time) func(*gorm.DB) *gorm.DB {
	return VisibleTo(0, now)
}
