package models

import (
	"time"

	"github.com/go-playground/validator"
)

type UserAccount struct {
	JsonModel
	Name   string `json:"name"`
	Email  string `json:"email" gorm:"unique"`
	Banned bool   `gorm:"default:false" json:"-"`
	LastIp string `json:"-"`
	//"STARTED_AUTH", "FINISHED_AUTH"
	Status              string     `json:"-"`
	GoogleID            string     `json:"-"`
	Platform            Platform   `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	AvatarURL           string     `json:"avatar_url"`
	ConfirmedDeleteDate *time.Time `json:"-"`
	// Notifications settings
	ReceiveNotifications bool `json:"receive_notifications"`

	Profile *StyleProfile `gorm:"foreignKey:UserAccountID" json:"profile"`
}

type UserPushToken struct {
	JsonModel
	UserAccountID uint
	UserAccount   UserAccount `json:"user_account"`
	Platform      Platform    `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	Token         string      `json:"token"`
	Active        bool        `gorm:"default:false" json:"-"`
}

// Body measurements in centimeters, embedded both in the profile row and in
// analysis responses.
type Measurements struct {
	Bust   float64 `json:"bust"`
	Waist  float64 `json:"waist"`
	Hips   float64 `json:"hips"`
	Height float64 `json:"height"`
}

var bodyTypes = map[string]bool{
	"hourglass":         true,
	"rectangle":         true,
	"pear":              true,
	"apple":             true,
	"inverted-triangle": true,
}

func ValidateBodyType(fl validator.FieldLevel) bool {
	return bodyTypes[fl.Field().String()]
}

// StyleProfile is the single per-user styling record: display name, base
// (full body) image and the biometrics the look engine reasons about.
type StyleProfile struct {
	JsonModel
	UserAccountID uint        `json:"-"`
	UserAccount   UserAccount `json:"-"`

	Name string `json:"name"`
	// object key in the image bucket or a data url for freshly captured frames
	BaseImageURL  string `json:"base_image_url"`
	PersonalStyle string `json:"personal_style"` // classic, boho, minimalist, streetwear
	BodyType      string `json:"body_type"`      // hourglass, rectangle, pear, apple, inverted-triangle

	BustCM   float64 `json:"bust_cm"`
	WaistCM  float64 `json:"waist_cm"`
	HipsCM   float64 `json:"hips_cm"`
	HeightCM float64 `json:"height_cm"`
}

// Complete reports whether generation can run meaningfully for this profile.
// An incomplete profile still yields a best-effort request.
func (p StyleProfile) Complete() bool {
	return p.Name != "" && p.BaseImageURL != ""
}

func (p StyleProfile) Measurements() Measurements {
	return Measurements{Bust: p.BustCM, Waist: p.WaistCM, Hips: p.HipsCM, Height: p.HeightCM}
}

type StyleProfileIn struct {
	Name          string  `json:"name" validate:"required,max=100"`
	BaseImageURL  string  `json:"base_image_url" validate:"omitempty,max=2000000"`
	PersonalStyle string  `json:"personal_style" validate:"omitempty,max=50"`
	BodyType      string  `json:"body_type" validate:"omitempty,bodytype"`
	Bust          float64 `json:"bust" validate:"omitempty,gte=0,lte=300"`
	Waist         float64 `json:"waist" validate:"omitempty,gte=0,lte=300"`
	Hips          float64 `json:"hips" validate:"omitempty,gte=0,lte=300"`
	Height        float64 `json:"height" validate:"omitempty,gte=0,lte=300"`
}
