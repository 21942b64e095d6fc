package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"taskboard/internal/model"
)

// ErrUserNotFound is returned when no row matches a Telegram ID.
var ErrUserNotFound = errors.New("user not found")

// UserRepository stores Telegram users and their provider sessions.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromTelegram finds or creates a user by TelegramID and refreshes the profile fields.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, username string) (*model.User, error) {
	var user model.User
	db := r.db.WithContext(ctx)
	err := db.Where("telegram_id = ?", telegramID).First(&user).Error
	switch {
	case err == nil:
		if user.FirstName == firstName && user.Username == username {
			return &user, nil
		}
		updates := map[string]interface{}{
			"first_name": firstName,
			"username":   username,
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			TelegramID: telegramID,
			FirstName:  firstName,
			Username:   username,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &user, nil
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// SaveSession stores the provider session for a Telegram user, creating the row if needed.
func (r *UserRepository) SaveSession(ctx context.Context, telegramID int64, uid, email, idToken, refreshToken string, expiresAt time.Time) error {
	var user model.User
	db := r.db.WithContext(ctx)
	if err := db.Where(model.User{TelegramID: telegramID}).FirstOrCreate(&user).Error; err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	updates := map[string]interface{}{
		"auth_uid":         uid,
		"email":            email,
		"id_token":         idToken,
		"refresh_token":    refreshToken,
		"token_expires_at": expiresAt,
	}
	if err := db.Model(&user).Updates(updates).Error; err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ClearSession forgets the provider session but keeps the Telegram profile.
func (r *UserRepository) ClearSession(ctx context.Context, telegramID int64) error {
	updates := map[string]interface{}{
		"auth_uid":         "",
		"email":            "",
		"id_token":         "",
		"refresh_token":    "",
		"token_expires_at": nil,
	}
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("telegram_id = ?", telegramID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// FindByAuthUID returns the Telegram user signed in as the given provider account.
func (r *UserRepository) FindByAuthUID(ctx context.Context, uid string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("auth_uid = ?", uid).Order("updated_at DESC").First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by uid: %w", err)
	}
	return &user, nil
}

// ListSignedIn returns every user that currently holds a session.
func (r *UserRepository) ListSignedIn(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("auth_uid <> ''").Order("telegram_id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list signed-in users: %w", err)
	}
	return users, nil
}
