package service

import (
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
)

type UserService struct {
	UserRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{UserRepo: userRepo}
}

func (s *UserService) Profile(userID uint) (*model.User, error) {
	return s.UserRepo.FindByID(userID)
}

func (s *UserService) UpdateProfile(userID uint, name string) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		user.Name = name
	}
	if err := s.UserRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) TouchLastSeen(userID uint) error {
	return s.UserRepo.UpdateLastSeen(userID)
}

// Admin operations.

func (s *UserService) List(page, limit int) ([]model.User, int64, error) {
	return s.UserRepo.List(page, limit)
}

func (s *UserService) SetDisabled(userID uint, disabled bool) error {
	return s.UserRepo.SetDisabled(userID, disabled)
}

func (s *UserService) SetRole(userID uint, role model.UserRole) error {
	return s.UserRepo.SetRole(userID, role)
}
