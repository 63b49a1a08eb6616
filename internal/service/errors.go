package service

import (
	"errors"

	"mlmsystem/internal/repository"
)

// 审核前置条件错误：不会产生任何数据变更
var (
	ErrRequestNotPending = errors.New("套餐申请不是待审核状态")
	ErrUserInactive      = errors.New("用户未激活")
	ErrPackageInactive   = errors.New("套餐已下架")
)

var (
	ErrInvalidUsername   = errors.New("用户名不合法")
	ErrReferrerNotFound  = errors.New("推荐人不存在")
	ErrInvalidUserStatus = errors.New("用户状态不合法")
)

// IsPrecondition 判断是否为前置条件不满足导致的失败
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrRequestNotPending) ||
		errors.Is(err, ErrUserInactive) ||
		errors.Is(err, ErrPackageInactive) ||
		errors.Is(err, repository.ErrRequestNotFound) ||
		errors.Is(err, repository.ErrUserNotFound) ||
		errors.Is(err, repository.ErrPackageNotFound)
}
