package service

import (
	"Lumen_Stream/internal/model"
	"Lumen_Stream/internal/repository"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 认证服务接口：1、注册 2、登录 3、给用户签发token
type AuthService interface {
	Signup(username, email, password string) (*model.User, error)
	Login(email, password string) (*model.User, error)
	// GenerateToken 签出带user_id和过期时间的JWT，handler负责塞进cookie
	GenerateToken(userID uint64) (string, error)
}

// 认证服务包装
type authService struct {
	userRepo repository.UserRepository
	secret   []byte
	tokenTTL time.Duration
}

// 包装函数，密钥和有效期从config注入，不再在service里读环境变量
func NewAuthService(userRepo repository.UserRepository, secret []byte, tokenTTL time.Duration) AuthService {
	return &authService{
		userRepo: userRepo,
		secret:   secret,
		tokenTTL: tokenTTL,
	}
}

// 注册逻辑：1、密码长度检查 2、密码加密存储 3、插入数据库，邮箱查重靠唯一索引的1062错误
// 不做“先查后插”：两个请求同时注册同一个邮箱时，先查后插会双双通过检查，唯一索引不会
func (s *authService) Signup(username, email, password string) (*model.User, error) {
	if len(password) < 6 {
		return nil, ErrPasswordTooShort
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	newUser := &model.User{
		Username: username,
		Email:    email,
		Password: string(hashedPassword),
	}

	if err := s.userRepo.Create(newUser); err != nil {
		var mysqlErr *mysql.MySQLError
		// 错误号 1062 就是 "Duplicate entry"，说明邮箱已经被注册过了
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return newUser, nil
}

// 登录逻辑：1、检查库中是否有该邮箱 2、加密后密码和输入密码比对
// “用户不存在”和“密码错误”都返回同一个模糊错误，不给攻击者探测邮箱的机会
func (s *authService) Login(email, password string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// 签发token：Payload不加密，绝不能把密码放进去，只放user_id和时间
func (s *authService) GenerateToken(userID uint64) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(s.tokenTTL).Unix(), // 过期时间，和cookie保持一致
		"iat":     time.Now().Unix(),                 // 签发时间
	}
	// token加上Header，算法信息HS256，对称加密
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	// 对token对象中的Header和Payload进行签名，用于防伪（Header.Payload.Signature）
	return token.SignedString(s.secret)
}
