package repository

import (
	"errors"
	"fmt"

	"github.com/lluckydog/Verilog-OJ/internal/model"
	pkgerrors "github.com/lluckydog/Verilog-OJ/pkg/errors"
)

// ErrDuplicate 唯一约束冲突；具体冲突字段见下方派生错误
var ErrDuplicate = errors.New("记录已存在")

var (
	ErrUsernameTaken  = fmt.Errorf("%w: 用户名已被占用", ErrDuplicate)
	ErrStudentIDTaken = fmt.Errorf("%w: 学号已被绑定", ErrDuplicate)
)

// translateUserError 将数据库唯一约束冲突转换为业务可识别的错误，其他错误原样返回
func translateUserError(err error) error {
	constraint, ok := pkgerrors.UniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case model.UserUsernameConstraint:
		return ErrUsernameTaken
	case model.UserStudentIDConstraint:
		return ErrStudentIDTaken
	default:
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
}
