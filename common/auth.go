package common

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"blogicum/models"
)

const (
	SessionUserKey = "user_id"
	userContextKey = "current_user"
	LoginPath      = "/auth/login/"
)

// LoadUser resolves the session user once per request. A session pointing at
// a deleted user is cleared.
func LoadUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id := sessionUserID(session.Get(SessionUserKey))
		if id == 0 {
			c.Next()
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
			session.Delete(SessionUserKey)
			if err := session.Save(); err != nil {
				log.Printf("clear stale session user %d: %v", id, err)
			}
			c.Next()
			return
		}

		c.Set(userContextKey, &user)
		c.Next()
	}
}

func sessionUserID(v interface{}) uint {
	switch id := v.(type) {
	case uint:
		return id
	case int:
		if id > 0 {
			return uint(id)
		}
	case int64:
		if id > 0 {
			return uint(id)
		}
	}
	return 0
}

func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userContextKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// CurrentUserID returns zero for anonymous requests.
func CurrentUserID(c *gin.Context) uint {
	if user := CurrentUser(c); user != nil {
		return user.ID
	}
	return 0
}

// RequireAuth sends anonymous requests to the login page with a next parameter.
func RequireAuth(c *gin.Context) {
	if CurrentUser(c) == nil {
		c.Redirect(http.StatusFound, LoginPath+"?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
		return
	}
	c.Next()
}

func Login(c *gin.Context, user *models.User) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(SessionUserKey, user.ID)
	c.Set(userContextKey, user)
	return session.Save()
}

func Logout(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}

// SafeNext accepts only local absolute paths.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return fallback
	}
	return next
}
