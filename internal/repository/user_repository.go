package repository

import (
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

// Upsert 按用户名插入或更新姓名、角色与班级
func (r *UserRepository) Upsert(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "role", "group", "updated_at"}),
	}).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewKindError(util.ErrNotFound, "user not found")
	}
	return &user, err
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewKindError(util.ErrNotFound, "user not found")
	}
	return &user, err
}

func (r *UserRepository) UpdateGroup(ctx context.Context, id uint, group string) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("group", group).Error
}

// StudentsInGroups 返回当前属于给定班级且未停用的学生
func (r *UserRepository) StudentsInGroups(ctx context.Context, groups []string) ([]model.RosterEntry, error) {
	if len(groups) == 0 {
		return []model.RosterEntry{}, nil
	}
	var users []model.User
	err := r.DB.WithContext(ctx).
		Where("role = ? AND disabled = ? AND `group` IN ?", model.Student, false, groups).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	out := make([]model.RosterEntry, 0, len(users))
	for i := range users {
		out = append(out, model.RosterEntry{ID: users[i].ID, FullName: users[i].FullName(), Group: users[i].Group})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}
