// Package seed fills a development database with fake users, posts and comments.
package seed

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blogicum/accounts"
	"blogicum/models"
)

type Options struct {
	Users           int
	Categories      int
	Locations       int
	PostsPerUser    int
	CommentsPerPost int
	// Password is shared by every generated user.
	Password string
	// Seed makes the generated data repeatable; zero picks a random seed.
	Seed int64
}

func DefaultOptions() Options {
	return Options{
		Users:           5,
		Categories:      4,
		Locations:       4,
		PostsPerUser:    6,
		CommentsPerPost: 3,
		Password:        "password123",
	}
}

type Summary struct {
	Users      int
	Categories int
	Locations  int
	Posts      int
	Comments   int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d categories, %d locations, %d posts, %d comments",
		s.Users, s.Categories, s.Locations, s.Posts, s.Comments)
}

// Run inserts everything in one transaction.
func Run(ctx context.Context, db *gorm.DB, opts Options) (Summary, error) {
	var summary Summary
	if opts.Users <= 0 {
		return summary, fmt.Errorf("seed needs at least one user")
	}

	faker := gofakeit.New(opts.Seed)
	passwordHash, err := accounts.HashPassword(opts.Password)
	if err != nil {
		return summary, fmt.Errorf("hash seed password: %w", err)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make([]models.User, opts.Users)
		for i := range users {
			first, last := faker.FirstName(), faker.LastName()
			users[i] = models.User{
				Username:     fmt.Sprintf("%s_%d", strings.ToLower(first), i+1),
				FirstName:    first,
				LastName:     last,
				Email:        faker.Email(),
				PasswordHash: passwordHash,
			}
		}
		if err := tx.Create(&users).Error; err != nil {
			return fmt.Errorf("create users: %w", err)
		}
		summary.Users = len(users)

		categories := make([]models.Category, opts.Categories)
		for i := range categories {
			word := strings.ToLower(faker.Word())
			categories[i] = models.Category{
				Title:       strings.ToUpper(word[:1]) + word[1:],
				Description: faker.Sentence(12),
				Slug:        fmt.Sprintf("%s-%d", word, i+1),
				// the last category stays hidden so the visibility rules have something to hide
				IsPublished: i < opts.Categories-1 || opts.Categories == 1,
			}
		}
		if len(categories) > 0 {
			if err := tx.Create(&categories).Error; err != nil {
				return fmt.Errorf("create categories: %w", err)
			}
		}
		summary.Categories = len(categories)

		locations := make([]models.Location, opts.Locations)
		for i := range locations {
			locations[i] = models.Location{Name: faker.City(), IsPublished: faker.Number(0, 4) > 0}
		}
		if len(locations) > 0 {
			if err := tx.Create(&locations).Error; err != nil {
				return fmt.Errorf("create locations: %w", err)
			}
		}
		summary.Locations = len(locations)

		now := time.Now()
		var posts []models.Post
		for _, user := range users {
			for i := 0; i < opts.PostsPerUser; i++ {
				post := models.Post{
					Title:       strings.TrimSuffix(faker.Sentence(faker.Number(3, 7)), "."),
					Text:        faker.Paragraph(faker.Number(1, 3), 4, 12, "\n\n"),
					PubDate:     faker.DateRange(now.AddDate(0, -3, 0), now),
					IsPublished: faker.Number(0, 5) > 0,
					AuthorID:    user.ID,
				}
				// one scheduled post per author
				if i == 0 {
					post.PubDate = now.Add(time.Duration(faker.Number(1, 14)) * 24 * time.Hour)
				}
				if len(categories) > 0 {
					post.CategoryID = &categories[faker.Number(0, len(categories)-1)].ID
				}
				if len(locations) > 0 && faker.Bool() {
					post.LocationID = &locations[faker.Number(0, len(locations)-1)].ID
				}
				posts = append(posts, post)
			}
		}
		if len(posts) > 0 {
			if err := tx.Omit(clause.Associations).Create(&posts).Error; err != nil {
				return fmt.Errorf("create posts: %w", err)
			}
		}
		summary.Posts = len(posts)

		var comments []models.Comment
		for _, post := range posts {
			for i := 0; i < opts.CommentsPerPost; i++ {
				comments = append(comments, models.Comment{
					PostID:   post.ID,
					AuthorID: users[faker.Number(0, len(users)-1)].ID,
					Text:     faker.Sentence(faker.Number(5, 20)),
				})
			}
		}
		if len(comments) > 0 {
			if err := tx.Omit(clause.Associations).Create(&comments).Error; err != nil {
				return fmt.Errorf("create comments: %w", err)
			}
		}
		summary.Comments = len(comments)
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	log.Printf("seeded %s", summary)
	return summary, nil
}
