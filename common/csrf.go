package common

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	csrfSessionKey = "csrf_token"
	CSRFFormField  = "csrfmiddlewaretoken"
	CSRFHeader     = "X-CSRF-Token"
)

// CSRF keeps a per-session token and rejects unsafe requests that do not echo
// it back in the form field or the header.
func CSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(csrfSessionKey).(string)

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if token == "" {
				var err error
				if token, err = GenerateToken(); err != nil {
					ServerError(c, err)
					c.Abort()
					return
				}
				session.Set(csrfSessionKey, token)
				if err := session.Save(); err != nil {
					log.Printf("save csrf token: %v", err)
				}
			}
			c.Set(csrfSessionKey, token)
			c.Next()
			return
		}

		sent := c.GetHeader(CSRFHeader)
		if sent == "" {
			sent = c.PostForm(CSRFFormField)
		}
		if token == "" || subtle.ConstantTimeCompare([]byte(sent), []byte(token)) != 1 {
			c.HTML(http.StatusForbidden, "403csrf.html", gin.H{})
			c.Abort()
			return
		}

		c.Set(csrfSessionKey, token)
		c.Next()
	}
}

// CSRFToken returns the token templates embed in forms.
func CSRFToken(c *gin.Context) string {
	return c.GetString(csrfSessionKey)
}

func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
