package accounts

import (
	"context"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"blogicum/cache"
	"blogicum/common"
	"blogicum/models"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// passwordCost is lowered by tests.
var passwordCost = 14

type AccountsModule struct {
	db    *gorm.DB
	cache *cache.Store
}

// NewAccountsModule takes the page cache so profile changes reach cached post pages.
func NewAccountsModule(db *gorm.DB, pageCache *cache.Store) *AccountsModule {
	return &AccountsModule{db: db, cache: pageCache}
}

func (a *AccountsModule) RegisterRoutes(router *gin.Engine) {
	auth := router.Group("/auth")
	{
		auth.GET("/registration/", a.registrationPage)
		auth.POST("/registration/", a.registrationPost)
		auth.GET("/login/", a.loginPage)
		auth.POST("/login/", a.loginPost)
		auth.POST("/logout/", a.logout)
	}

	router.GET("/edit_profile/", common.RequireAuth, a.editProfilePage)
	router.POST("/edit_profile/", common.RequireAuth, a.editProfilePost)
	router.GET("/change_password/", common.RequireAuth, a.changePasswordPage)
	router.POST("/change_password/", common.RequireAuth, a.changePasswordPost)
}

type RegistrationForm struct {
	Username        string `form:"username" binding:"required,max=150"`
	FirstName       string `form:"first_name" binding:"max=150"`
	LastName        string `form:"last_name" binding:"max=150"`
	Email           string `form:"email" binding:"omitempty,email,max=254"`
	Password        string `form:"password" binding:"required"`
	PasswordConfirm string `form:"password_confirm" binding:"required,eqfield=Password"`
}

type ProfileForm struct {
	Username  string `form:"username" binding:"required,max=150"`
	FirstName string `form:"first_name" binding:"max=150"`
	LastName  string `form:"last_name" binding:"max=150"`
	Email     string `form:"email" binding:"omitempty,email,max=254"`
}

type PasswordForm struct {
	OldPassword        string `form:"old_password" binding:"required"`
	NewPassword        string `form:"new_password" binding:"required"`
	NewPasswordConfirm string `form:"new_password_confirm" binding:"required,eqfield=NewPassword"`
}

func (a *AccountsModule) registrationPage(c *gin.Context) {
	if common.CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	common.Render(c, http.StatusOK, "registration.html", gin.H{
		"title":  "Sign up",
		"form":   RegistrationForm{},
		"errors": common.FormErrors{},
	})
}

func (a *AccountsModule) registrationPost(c *gin.Context) {
	var form RegistrationForm
	errs := common.FormErrors{}
	if err := c.ShouldBind(&form); err != nil {
		errs = common.BindErrors(err)
	}
	form.Username = strings.TrimSpace(form.Username)
	if form.Username != "" && !usernamePattern.MatchString(form.Username) {
		errs.Add("username", "Letters, digits and @/./+/-/_ only.")
	}

	if !errs.Any() {
		_, err := a.register(c.Request.Context(), form)
		if err == nil {
			c.Redirect(http.StatusFound, common.LoginPath)
			return
		}
		if !errs.AddAppError(err) {
			common.ServerError(c, err)
			return
		}
	}

	// the password is never sent back
	form.Password, form.PasswordConfirm = "", ""
	common.Render(c, http.StatusBadRequest, "registration.html", gin.H{
		"title":  "Sign up",
		"form":   form,
		"errors": errs,
	})
}

// register creates the user row; a taken username is an INTEGRITY_ERROR on "username".
func (a *AccountsModule) register(ctx context.Context, form RegistrationForm) (*models.User, error) {
	if form.Password != form.PasswordConfirm {
		return nil, models.NewValidationError("password_confirm", "The two password fields didn't match.")
	}

	taken, err := a.usernameTaken(ctx, form.Username, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewIntegrityError("username", "A user with that username already exists.", nil)
	}

	passwordHash, err := hashPassword(form.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     form.Username,
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		Email:        form.Email,
		PasswordHash: passwordHash,
	}
	if err := a.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.NewIntegrityError("username", "A user with that username already exists.", err)
		}
		return nil, err
	}

	log.Printf("registered user %s (id=%d)", user.Username, user.ID)
	return &user, nil
}

func (a *AccountsModule) usernameTaken(ctx context.Context, username string, exceptID uint) (bool, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? AND id <> ?", username, exceptID).
		Count(&count).Error
	return count > 0, err
}

func (a *AccountsModule) loginPage(c *gin.Context) {
	next := common.SafeNext(c.Query("next"), "")
	if user := common.CurrentUser(c); user != nil {
		c.Redirect(http.StatusFound, common.SafeNext(next, "/profile/"+user.Username+"/"))
		return
	}
	common.Render(c, http.StatusOK, "login.html", gin.H{
		"title":    "Log in",
		"next":     next,
		"username": "",
		"error":    "",
	})
}

func (a *AccountsModule) loginPost(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	next := common.SafeNext(c.PostForm("next"), "")

	user, err := a.authenticate(c.Request.Context(), username, password)
	if err != nil {
		status := http.StatusUnauthorized
		if !models.IsNotFound(err) && !models.IsPermissionDenied(err) {
			status = http.StatusInternalServerError
			log.Printf("login for %s failed: %v", username, err)
		}
		common.Render(c, status, "login.html", gin.H{
			"title":    "Log in",
			"next":     next,
			"username": username,
			"error":    "Please enter a correct username and password.",
		})
		return
	}

	if err := common.Login(c, user); err != nil {
		common.ServerError(c, err)
		return
	}
	c.Redirect(http.StatusFound, common.SafeNext(next, "/profile/"+user.Username+"/"))
}

func (a *AccountsModule) authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	if err := a.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	if !checkPasswordHash(password, user.PasswordHash) {
		return nil, models.NewPermissionDeniedError("wrong password")
	}
	return &user, nil
}

func (a *AccountsModule) logout(c *gin.Context) {
	if err := common.Logout(c); err != nil {
		common.ServerError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (a *AccountsModule) editProfilePage(c *gin.Context) {
	user := common.CurrentUser(c)
	common.Render(c, http.StatusOK, "edit_profile.html", gin.H{
		"title": "Edit profile",
		"form": ProfileForm{
			Username:  user.Username,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Email:     user.Email,
		},
		"errors": common.FormErrors{},
	})
}

func (a *AccountsModule) editProfilePost(c *gin.Context) {
	user := common.CurrentUser(c)

	var form ProfileForm
	errs := common.FormErrors{}
	if err := c.ShouldBind(&form); err != nil {
		errs = common.BindErrors(err)
	}
	form.Username = strings.TrimSpace(form.Username)
	if form.Username != "" && !usernamePattern.MatchString(form.Username) {
		errs.Add("username", "Letters, digits and @/./+/-/_ only.")
	}

	if !errs.Any() {
		err := a.updateProfile(c.Request.Context(), user, form)
		if err == nil {
			c.Redirect(http.StatusFound, "/profile/"+user.Username+"/")
			return
		}
		if !errs.AddAppError(err) {
			common.ServerError(c, err)
			return
		}
	}

	common.Render(c, http.StatusBadRequest, "edit_profile.html", gin.H{
		"title":  "Edit profile",
		"form":   form,
		"errors": errs,
	})
}

func (a *AccountsModule) updateProfile(ctx context.Context, user *models.User, form ProfileForm) error {
	taken, err := a.usernameTaken(ctx, form.Username, user.ID)
	if err != nil {
		return err
	}
	if taken {
		return models.NewIntegrityError("username", "A user with that username already exists.", nil)
	}

	updated := *user
	updated.Username = form.Username
	updated.FirstName = form.FirstName
	updated.LastName = form.LastName
	updated.Email = form.Email

	if err := a.db.WithContext(ctx).Save(&updated).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.NewIntegrityError("username", "A user with that username already exists.", err)
		}
		return err
	}
	*user = updated

	// cached post pages show the author's name and profile link
	if err := a.cache.ClearAll(); err != nil {
		log.Printf("clear page cache after profile change: %v", err)
	}
	return nil
}

func (a *AccountsModule) changePasswordPage(c *gin.Context) {
	common.Render(c, http.StatusOK, "change_password.html", gin.H{
		"title":  "Change password",
		"errors": common.FormErrors{},
	})
}

func (a *AccountsModule) changePasswordPost(c *gin.Context) {
	user := common.CurrentUser(c)

	var form PasswordForm
	errs := common.FormErrors{}
	if err := c.ShouldBind(&form); err != nil {
		errs = common.BindErrors(err)
	}

	if !errs.Any() {
		err := a.changePassword(c.Request.Context(), user, form)
		if err == nil {
			c.Redirect(http.StatusFound, "/profile/"+user.Username+"/")
			return
		}
		if !errs.AddAppError(err) {
			common.ServerError(c, err)
			return
		}
	}

	common.Render(c, http.StatusBadRequest, "change_password.html", gin.H{
		"title":  "Change password",
		"errors": errs,
	})
}

func (a *AccountsModule) changePassword(ctx context.Context, user *models.User, form PasswordForm) error {
	if !checkPasswordHash(form.OldPassword, user.PasswordHash) {
		return models.NewValidationError("old_password", "Your old password was entered incorrectly.")
	}
	if form.NewPassword != form.NewPasswordConfirm {
		return models.NewValidationError("new_password_confirm", "The two password fields didn't match.")
	}

	passwordHash, err := hashPassword(form.NewPassword)
	if err != nil {
		return err
	}
	if err := a.db.WithContext(ctx).Model(user).Update("password_hash", passwordHash).Error; err != nil {
		return err
	}
	user.PasswordHash = passwordHash
	return nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// HashPassword is exported for the seed command.
func HashPassword(password string) (string, error) {
	return hashPassword(password)
}
