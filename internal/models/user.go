package models

import "time"

type User struct {
	ID           int       `json:"id"`
	UserName     string    `json:"userName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token      string    `json:"token"`
	User       User      `json:"user"`
	Expiration time.Time `json:"expiration"`
}
