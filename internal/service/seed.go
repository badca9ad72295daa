package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/lluckydog/Verilog-OJ/internal/model"
	"github.com/lluckydog/Verilog-OJ/internal/repository"
)

// seedFile 初始用户文件格式
//
//	users:
//	  - username: admin
//	    password: change-me
//	    is_superuser: true
type seedFile struct {
	Users []struct {
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		StudentID   string `yaml:"student_id"`
		Nickname    string `yaml:"nickname"`
		IsSuperuser bool   `yaml:"is_superuser"`
	} `yaml:"users"`
}

// SeedUsers 从 YAML 文件导入初始用户，已存在的用户名跳过，返回新建数量
func SeedUsers(ctx context.Context, repo *repository.Repository, path string, logger *zap.Logger) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("读取初始用户文件失败: %w", err)
	}

	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return 0, fmt.Errorf("解析初始用户文件失败: %w", err)
	}

	created := 0
	for _, u := range sf.Users {
		if u.Username == "" || u.Password == "" {
			continue
		}
		if err := ValidateUsername(u.Username); err != nil {
			return created, fmt.Errorf("初始用户 %q: %w", u.Username, err)
		}

		if _, err := repo.User.GetByUsername(ctx, u.Username); err == nil {
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, err
		}

		hash, err := hashPassword(u.Password)
		if err != nil {
			return created, err
		}
		sid := u.StudentID
		user := &model.User{
			Username:     u.Username,
			StudentID:    normalizeStudentID(&sid),
			Nickname:     u.Nickname,
			PasswordHash: hash,
			IsSuperuser:  u.IsSuperuser,
			IsActive:     true,
		}
		if err := repo.User.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
			return created, fmt.Errorf("创建初始用户 %q 失败: %w", u.Username, err)
		}

		logger.Info("已导入初始用户", zap.String("username", u.Username), zap.Bool("is_superuser", u.IsSuperuser))
		created++
	}

	return created, nil
}
