package db

import (
	"context"

	"projector_reservation/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GrantRole is idempotent.
func (r *Repo) GrantRole(ctx context.Context, userID string, role models.Role, grantedBy *string) error {
	ur := models.UserRole{UserID: userID, Role: role, GrantedBy: grantedBy}
	return translate(r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ur).Error, "user role")
}

func (r *Repo) RevokeRole(ctx context.Context, userID string, role models.Role) error {
	return translate(r.DB.WithContext(ctx).
		Where("user_id = ? AND role = ?", userID, role).
		Delete(&models.UserRole{}).Error, "user role")
}

func (r *Repo) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.UserRole{}).
		Where("role = ?", models.RoleAdmin).
		Count(&n).Error
	return n, err
}

func (r *Repo) ListUsersWithRole(ctx context.Context, role models.Role) ([]models.User, error) {
	return usersWithRole(r.DB.WithContext(ctx), role)
}

func usersWithRole(tx *gorm.DB, role models.Role) ([]models.User, error) {
	var users []models.User
	err := tx.
		Where("id IN (?)", tx.Session(&gorm.Session{NewDB: true}).Model(&models.UserRole{}).Select("user_id").Where("role = ?", role)).
		Order("email").
		Find(&users).Error
	return users, translate(err, "users")
}
