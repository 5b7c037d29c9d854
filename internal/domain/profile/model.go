package profile

import (
	"time"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

// User is an account that can log in.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	Name         string    `json:"name" bson:"name"`
	Role         string    `json:"role" bson:"role"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// Profile holds the personal health details shown on the dashboard.
type Profile struct {
	UserID      string    `json:"user_id" bson:"_id"`
	DateOfBirth string    `json:"date_of_birth,omitempty" bson:"date_of_birth"`
	Sex         string    `json:"sex,omitempty" bson:"sex"`
	HeightCm    float64   `json:"height_cm,omitempty" bson:"height_cm"`
	WeightKg    float64   `json:"weight_kg,omitempty" bson:"weight_kg"`
	Conditions  []string  `json:"conditions" bson:"conditions"`
	Allergies   []string  `json:"allergies" bson:"allergies"`
	Goals       string    `json:"goals,omitempty" bson:"goals"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// BMI is zero when height or weight is missing.
func (p Profile) BMI() float64 {
	if p.HeightCm <= 0 || p.WeightKg <= 0 {
		return 0
	}
	m := p.HeightCm / 100
	return p.WeightKg / (m * m)
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProfileInput struct {
	Name        string   `json:"name" validate:"max=100"`
	DateOfBirth string   `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Sex         string   `json:"sex" validate:"omitempty,oneof=female male other"`
	HeightCm    float64  `json:"height_cm" validate:"gte=0,lte=260"`
	WeightKg    float64  `json:"weight_kg" validate:"gte=0,lte=400"`
	Conditions  []string `json:"conditions" validate:"max=20,dive,max=80"`
	Allergies   []string `json:"allergies" validate:"max=20,dive,max=80"`
	Goals       string   `json:"goals" validate:"max=300"`
}

// Session is returned by register, login and demo login.
type Session struct {
	User  *User       `json:"user"`
	Token *auth.Token `json:"token"`
}

// View is the profile endpoint response.
type View struct {
	User    *User    `json:"user"`
	Profile *Profile `json:"profile"`
	BMI     float64  `json:"bmi,omitempty"`
}

func fromSandbox(userID string, p sandbox.Profile, now time.Time) *Profile {
	return &Profile{
		UserID:      userID,
		DateOfBirth: p.DateOfBirth,
		Sex:         p.Sex,
		HeightCm:    p.HeightCm,
		WeightKg:    p.WeightKg,
		Conditions:  p.Conditions,
		Allergies:   p.Allergies,
		Goals:       p.Goals,
		UpdatedAt:   now,
	}
}
