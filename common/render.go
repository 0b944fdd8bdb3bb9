package common

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"blogicum/models"
)

// Render adds the session user and CSRF token every template expects.
func Render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if user := CurrentUser(c); user != nil {
		data["current_user"] = user
	}
	data["csrf_token"] = CSRFToken(c)
	data["csrf_field"] = CSRFFormField
	c.HTML(status, name, data)
}

func NotFound(c *gin.Context) {
	Render(c, http.StatusNotFound, "404.html", nil)
}

func ServerError(c *gin.Context, err error) {
	log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	Render(c, http.StatusInternalServerError, "500.html", nil)
}

// HandleError renders the error page matching err.
func HandleError(c *gin.Context, err error) {
	if models.IsNotFound(err) {
		NotFound(c)
		return
	}
	ServerError(c, err)
}
