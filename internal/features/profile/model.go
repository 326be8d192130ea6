package profile

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/pkg/pagination"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Profile is the application-side record for an identity subject. The ID is
// the subject id issued by the identity provider.
type Profile struct {
	ID       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email    string         `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	FullName string         `gorm:"type:varchar(120);not null;column:full_name" json:"fullName"`
	Role     types.UserRole `gorm:"type:varchar(20);not null;index" json:"role"`
	Active   bool           `gorm:"type:boolean;not null;column:is_active;index" json:"isActive"`

	types.TimestampModel
}

// TableName overrides the default table name.
func (Profile) TableName() string { return "user_profiles" }

// ListFilters defines profile query filters.
type ListFilters struct {
	Keyword string
	Role    *types.UserRole
	Active  *bool
}

// CreateInput carries data for creating a new profile.
type CreateInput struct {
	ID       uuid.UUID
	Email    string
	FullName string
	Role     types.UserRole
	Active   *bool
}

// ValidEmail reports whether email looks like a deliverable address.
func ValidEmail(email string) bool {
	return emailRegex.MatchString(strings.TrimSpace(email))
}

// List queries profiles with filters and pagination.
func List(db *gorm.DB, filters ListFilters, params pagination.Params) ([]Profile, int64, error) {
	query := db.Model(&Profile{})

	if filters.Keyword != "" {
		keyword := "%" + strings.ToLower(filters.Keyword) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", keyword, keyword)
	}
	if filters.Role != nil {
		query = query.Where("role = ?", *filters.Role)
	}
	if filters.Active != nil {
		query = query.Where("is_active = ?", *filters.Active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	profiles := make([]Profile, 0)
	if err := query.Order("full_name ASC").Scopes(params.Scope()).Find(&profiles).Error; err != nil {
		return nil, 0, err
	}

	return profiles, total, nil
}

// Get retrieves a profile by ID.
func Get(db *gorm.DB, id uuid.UUID) (Profile, error) {
	var p Profile
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return p, ErrProfileNotFound
		}
		return p, err
	}
	return p, nil
}

// GetByEmail retrieves a profile by email, case-insensitively.
func GetByEmail(db *gorm.DB, email string) (Profile, error) {
	var p Profile
	if err := db.First(&p, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return p, ErrProfileNotFound
		}
		return p, err
	}
	return p, nil
}

// Create inserts a profile. Profiles are active unless Active says otherwise.
func Create(db *gorm.DB, input CreateInput) (Profile, error) {
	if input.ID == uuid.Nil {
		return Profile{}, errors.New("profile id is required")
	}

	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return Profile{}, ErrFullNameRequired
	}
	if !input.Role.Valid() {
		return Profile{}, ErrInvalidRole
	}

	p := Profile{
		ID:       input.ID,
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		FullName: fullName,
		Role:     input.Role,
		Active:   true,
	}
	if input.Active != nil {
		p.Active = *input.Active
	}

	if err := db.Create(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Profile{}, ErrEmailTaken
		}
		return Profile{}, err
	}

	return p, nil
}

// UpdateName changes the display name. Role and email are immutable.
func UpdateName(db *gorm.DB, id uuid.UUID, fullName string) (Profile, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return Profile{}, ErrFullNameRequired
	}

	result := db.Model(&Profile{}).Where("id = ?", id).Update("full_name", fullName)
	if result.Error != nil {
		return Profile{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Profile{}, ErrProfileNotFound
	}
	return Get(db, id)
}

// SetActive sets the active flag.
func SetActive(db *gorm.DB, id uuid.UUID, active bool) (Profile, error) {
	result := db.Model(&Profile{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return Profile{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Profile{}, ErrProfileNotFound
	}
	return Get(db, id)
}

// Delete removes a profile row.
func Delete(db *gorm.DB, id uuid.UUID) error {
	result := db.Delete(&Profile{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// CountByRole counts profiles with role, optionally only active ones.
func CountByRole(db *gorm.DB, role types.UserRole, activeOnly bool) (int64, error) {
	query := db.Model(&Profile{}).Where("role = ?", role)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}
