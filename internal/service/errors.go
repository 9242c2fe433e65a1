package service

import "errors"

// 业务错误全部用哨兵错误表示，handler层用errors.Is统一翻译成HTTP状态码，
// 不让“记录不存在”这种业务语义以gorm.ErrRecordNotFound的形式漏到handler里
var (
	ErrNotFound           = errors.New("资源不存在")       // 404
	ErrForbidden          = errors.New("没有权限操作该资源")   // 403，登录了但不是所有者
	ErrEmailTaken         = errors.New("邮箱已被注册")      // 400
	ErrInvalidCredentials = errors.New("邮箱或密码错误")     // 400，登录失败统一模糊提示
	ErrPasswordTooShort   = errors.New("密码长度至少为6个字符") // 400
	ErrUpstream           = errors.New("媒体服务暂时不可用")   // 500，内部细节只进日志
)
