package contact

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Contact is a single operator-managed contact record.
// ID and CreatedAt are assigned on insert and never change afterwards.
type Contact struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(36)" json:"id" yaml:"id"`
	Name      string    `gorm:"column:name;not null;index" json:"name" yaml:"name"`
	Phone     string    `gorm:"column:phone;not null" json:"phone" yaml:"phone"`
	Email     string    `gorm:"column:email;not null" json:"email" yaml:"email"`
	Age       int       `gorm:"column:age;not null;check:chk_contact_info_age,age >= 18 AND age <= 120" json:"age" yaml:"age"`
	ImageURL  *string   `gorm:"column:image_url" json:"image_url" yaml:"image_url"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at" yaml:"updated_at"`
}

func (Contact) TableName() string { return "contact_info" }

func (c *Contact) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Image returns the image URL or "" when none is attached.
func (c *Contact) Image() string {
	if c.ImageURL == nil {
		return ""
	}
	return *c.ImageURL
}
