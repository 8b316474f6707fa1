package models

import (
	"errors"
	"strings"
	"time"
)

type Book struct {
	ID              string    `json:"id"`
	ISBN            *string   `json:"isbn,omitempty"`
	Title           string    `json:"title"`
	Authors         []string  `json:"authors"`
	Category        string    `json:"category"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate normalizes the editable fields and checks them.
func (b *Book) Validate() error {
	b.Title = strings.TrimSpace(b.Title)
	b.Category = strings.TrimSpace(b.Category)
	if b.Title == "" {
		return errors.New("title required")
	}
	if b.TotalCopies < 1 {
		return errors.New("total_copies must be >= 1")
	}
	authors := make([]string, 0, len(b.Authors))
	for _, a := range b.Authors {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	b.Authors = authors
	if b.ISBN != nil {
		isbn := NormalizeISBN(*b.ISBN)
		if isbn == "" {
			b.ISBN = nil
			return nil
		}
		if !ValidISBN(isbn) {
			return errors.New("invalid isbn")
		}
		b.ISBN = &isbn
	}
	return nil
}

// Consistent reports whether the counters are within [0, TotalCopies].
func (b Book) Consistent() bool {
	return b.TotalCopies >= 1 && b.AvailableCopies >= 0 && b.AvailableCopies <= b.TotalCopies
}

// Issued is the number of copies currently out on loan according to the counters.
func (b Book) Issued() int { return b.TotalCopies - b.AvailableCopies }

// NormalizeISBN strips hyphens and spaces and upper-cases a trailing x.
func NormalizeISBN(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '-' || r == ' ':
		case r == 'x':
			sb.WriteRune('X')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// ValidISBN checks a normalized ISBN-10 or ISBN-13 checksum.
func ValidISBN(s string) bool {
	switch len(s) {
	case 10:
		sum := 0
		for i := 0; i < 10; i++ {
			c := s[i]
			var d int
			switch {
			case c >= '0' && c <= '9':
				d = int(c - '0')
			case c == 'X' && i == 9:
				d = 10
			default:
				return false
			}
			sum += d * (10 - i)
		}
		return sum%11 == 0
	case 13:
		sum := 0
		for i := 0; i < 13; i++ {
			c := s[i]
			if c < '0' || c > '9' {
				return false
			}
			d := int(c - '0')
			if i%2 == 1 {
				d *= 3
			}
			sum += d
		}
		return sum%10 == 0
	}
	return false
}
