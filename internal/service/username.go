package service

import (
	"crypto/rand"
	"errors"
	"math/big"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidUsername 用户名为空、过长或含非法字符
	ErrInvalidUsername = errors.New("用户名只能包含字母、数字和 @.+-_，长度 1-150")
	// ErrPasswordTooLong bcrypt 只接受 72 字节以内的密码
	ErrPasswordTooLong = errors.New("密码过长，UTF-8 编码后不能超过 72 字节")
)

const (
	maxUsernameLen = 150

	// 随机用户名字符集与长度
	randomUsernameAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz@.+-_"
	randomUsernameLen      = 10

	maxPasswordBytes = 72
)

// passwordCost bcrypt 计算成本；测试中调低以加快速度
var passwordCost = bcrypt.DefaultCost

// ValidateUsername 校验用户名格式
func ValidateUsername(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > maxUsernameLen {
		return ErrInvalidUsername
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		switch r {
		case '@', '.', '+', '-', '_':
			continue
		}
		return ErrInvalidUsername
	}
	return nil
}

// randomUsername 从固定字符集中均匀随机生成用户名
func randomUsername() (string, error) {
	limit := big.NewInt(int64(len(randomUsernameAlphabet)))
	buf := make([]byte, randomUsernameLen)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = randomUsernameAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// hashPassword bcrypt 哈希；超过 72 字节返回 ErrPasswordTooLong
func hashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// checkPassword 校验明文密码与哈希是否匹配
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
