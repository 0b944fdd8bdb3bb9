package blog

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"blogicum/models"
)

const maxImageSize = 5 << 20

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// saveImage stores the uploaded "image" file under the media directory and
// returns its path relative to it. No upload yields "".
func (b *BlogModule) saveImage(c *gin.Context) (string, error) {
	file, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", err
	}
	if file.Size == 0 {
		return "", nil
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !imageExtensions[ext] {
		return "", models.NewValidationError("image", "Upload a valid image.")
	}
	if file.Size > maxImageSize {
		return "", models.NewValidationError("image", "The image may not be larger than 5 MB.")
	}

	rel := path.Join("posts", uuid.NewString()+ext)
	dst := filepath.Join(b.mediaDir, filepath.FromSlash(rel))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		return "", err
	}
	return rel, nil
}

func (b *BlogModule) removeImage(rel string) {
	if rel == "" {
		return
	}
	err := os.Remove(filepath.Join(b.mediaDir, filepath.FromSlash(rel)))
	if err != nil && !os.IsNotExist(err) {
		log.Printf("remove image %s: %v", rel, err)
	}
}
