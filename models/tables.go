package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	FirstName    string    `gorm:"size:150" json:"first_name"`
	LastName     string    `gorm:"size:150" json:"last_name"`
	Email        string    `gorm:"size:254" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"` // json:"-" keeps the hash out of any JSON output
	CreatedAt    time.Time `json:"created_at"`
}

// FullName falls back to the username when no name was given.
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}

type Category struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"size:256;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Slug        string    `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	IsPublished bool      `gorm:"not null;index" json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
}

type Location struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:256;not null" json:"name"`
	IsPublished bool      `gorm:"not null" json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
}

type Post struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"size:256;not null" json:"title"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	PubDate     time.Time `gorm:"not null;index" json:"pub_date"`
	IsPublished bool      `gorm:"not null;index" json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	Image       string    `json:"image,omitempty"` // path relative to the media root

	AuthorID   uint      `gorm:"not null;index" json:"author_id"`
	Author     User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	LocationID *uint     `gorm:"index" json:"location_id,omitempty"`
	Location   *Location `gorm:"constraint:OnDelete:SET NULL" json:"location,omitempty"`
	CategoryID *uint     `gorm:"index" json:"category_id,omitempty"`
	Category   *Category `gorm:"constraint:OnDelete:SET NULL" json:"category,omitempty"`

	Comments []Comment `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	// CommentCount is computed at query time and never stored.
	CommentCount int64 `gorm:"->;-:migration" json:"comment_count"`
}

func (p Post) OwnerID() uint { return p.AuthorID }

// BeforeSave stores pub_date in UTC so the column compares correctly as text on SQLite.
func (p *Post) BeforeSave(tx *gorm.DB) error {
	p.PubDate = p.PubDate.UTC()
	return nil
}

type Comment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c Comment) OwnerID() uint { return c.AuthorID }

// All lists every table in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Location{},
		&Post{},
		&Comment{},
	}
}
