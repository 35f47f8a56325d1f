package model

import "time"

// User is a registry row. ID and both timestamps are store-assigned.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Age       int       `json:"age"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserUpdate is a partial-update payload. A nil field means "leave the
// stored value alone"; a non-nil field overrides it, even with a zero
// value. JSON absence maps to nil, which is what makes the distinction
// reliable.
type UserUpdate struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Age   *int    `json:"age"`
}

// Apply copies the supplied fields onto u.
func (p UserUpdate) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Age != nil {
		u.Age = *p.Age
	}
}

// Empty reports whether the payload supplies no fields at all.
func (p UserUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Age == nil
}
