package models

import "fmt"

// Role is the closed set of roles a user can hold. It is enforced at the
// model boundary so persisted records cannot carry an unknown role.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"size:50;unique;not null"  json:"username"`
	Email        string `gorm:"unique;not null"          json:"email"`
	PasswordHash string `gorm:"size:255;not null"        json:"-"`
	Role         Role   `gorm:"size:50;not null"         json:"role"`
}

type Post struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Title   string `gorm:"size:255;not null"        json:"title"`
	Content string `gorm:"size:255;not null"        json:"content"`
	Author  string `gorm:"size:255;not null;index"  json:"author"`
}
