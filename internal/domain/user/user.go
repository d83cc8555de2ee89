package user

import (
	"errors"
	"slices"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

// RecipeNotes is a free-form note collection a user keeps for one recipe.
type RecipeNotes struct {
	RecipeID string   `json:"recipeId" bson:"recipeId"`
	Notes    []string `json:"notes" bson:"notes"`
}

type User struct {
	ID           string        `json:"id" bson:"_id"`
	Email        string        `json:"email" bson:"email"`
	PasswordHash string        `json:"-" bson:"passwordHash"` // never expose hash in JSON
	Name         string        `json:"name" bson:"name"`
	Roles        []string      `json:"roles" bson:"roles"`
	Image        string        `json:"image,omitempty" bson:"image,omitempty"`
	Favorites    []string      `json:"favorites" bson:"favorites"`
	Notes        []RecipeNotes `json:"notes" bson:"notes"`
	CreatedAt    time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt" bson:"updatedAt"`
}

func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// DefaultRoles is assigned when a registration names no roles.
func DefaultRoles() []string {
	return []string{RoleUser}
}
