package service

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/limbo/todoboard/pkg/entity"
)

const lastnameRunes = 6

// PrepareNewUser runs before a user row is created. It fills missing name parts from the
// display name and derives the username from them.
func PrepareNewUser(user *entity.User) {
	user.Name = strings.TrimSpace(user.Name)
	user.Firstname = strings.TrimSpace(user.Firstname)
	user.Lastname = strings.TrimSpace(user.Lastname)
	if user.Name != "" && (user.Firstname == "" || user.Lastname == "") {
		parts := strings.Fields(user.Name)
		user.Firstname = parts[0]
		user.Lastname = strings.Join(parts[1:], " ")
	}
	if user.Name == "" && user.Firstname != "" {
		user.Name = strings.TrimSpace(user.Firstname + " " + user.Lastname)
	}
	if username := deriveUsername(user.Firstname, user.Lastname); username != "" {
		user.Username = &username
	}
}

// deriveUsername returns the first letter of firstname followed by up to six letters of
// lastname with whitespace removed, all lowercased. Empty when either part is missing.
func deriveUsername(firstname, lastname string) string {
	if firstname == "" || lastname == "" {
		return ""
	}
	first, _ := utf8.DecodeRuneInString(firstname)
	var b strings.Builder
	b.WriteRune(unicode.ToLower(first))
	n := 0
	for _, r := range strings.ToLower(lastname) {
		if unicode.IsSpace(r) {
			continue
		}
		if n == lastnameRunes {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
