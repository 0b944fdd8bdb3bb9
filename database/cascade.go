package database

import (
	"context"

	"gorm.io/gorm"

	"blogicum/models"
)

// The helpers below repeat the ON DELETE rules inside a transaction so they
// also hold on connections where foreign keys are not enforced.

// DeletePost removes a post together with its comments.
func DeletePost(ctx context.Context, db *gorm.DB, postID uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Post{}, postID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.NewNotFoundError("post", postID)
		}
		return nil
	})
}

// DeleteCategory removes a category and detaches its posts.
func DeleteCategory(ctx context.Context, db *gorm.DB, categoryID uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).
			Where("category_id = ?", categoryID).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Category{}, categoryID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.NewNotFoundError("category", categoryID)
		}
		return nil
	})
}

// DeleteLocation removes a location and detaches its posts.
func DeleteLocation(ctx context.Context, db *gorm.DB, locationID uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).
			Where("location_id = ?", locationID).
			Update("location_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Location{}, locationID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.NewNotFoundError("location", locationID)
		}
		return nil
	})
}
