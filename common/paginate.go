package common

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Page describes one page of a listing. Numbers start at 1.
type Page struct {
	Number   int
	Size     int
	NumPages int
	Total    int64
}

// NewPage resolves the requested page number. Anything that is not a
// positive integer yields the first page and numbers past the end yield the last.
func NewPage(raw string, size int, total int64) Page {
	if size <= 0 {
		size = 10
	}
	numPages := int((total + int64(size) - 1) / int64(size))
	if numPages == 0 {
		numPages = 1
	}

	number, err := strconv.Atoi(raw)
	if err != nil || number < 1 {
		number = 1
	}
	if number > numPages {
		number = numPages
	}

	return Page{Number: number, Size: size, NumPages: numPages, Total: total}
}

func (p Page) Offset() int       { return (p.Number - 1) * p.Size }
func (p Page) HasPrevious() bool { return p.Number > 1 }
func (p Page) HasNext() bool     { return p.Number < p.NumPages }
func (p Page) Previous() int     { return p.Number - 1 }
func (p Page) Next() int         { return p.Number + 1 }
func (p Page) HasOther() bool    { return p.NumPages > 1 }

// Paginate counts base and hands fetch a copy limited to the requested page.
// base must not carry Select or Order clauses that break COUNT.
func Paginate(c *gin.Context, base *gorm.DB, size int, fetch func(q *gorm.DB) error) (Page, error) {
	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Page{}, err
	}

	page := NewPage(c.Query("page"), size, total)
	q := base.Session(&gorm.Session{}).Offset(page.Offset()).Limit(page.Size)
	if err := fetch(q); err != nil {
		return Page{}, err
	}
	return page, nil
}
