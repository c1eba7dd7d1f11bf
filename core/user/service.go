package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

var (
	// errors
	ErrNotFound     = errors.New("user not found")
	ErrEmailExists  = errors.New("a user with this email already exists")
	ErrInvalidToken = errors.New("invalid or expired reset token")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByResetToken(ctx context.Context, token string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service interface {
		Register(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		CheckEmailUniqueness(ctx context.Context, email string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *service) CheckEmailUniqueness(ctx context.Context, email string) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := MakeResetToken()
	if err != nil {
		return errors.Wrap(err, "generating reset token")
	}
	usr.ResetToken = token
	usr.ResetTokenExpiry = NowFunc().UTC().Add(svc.conf.PasswordResetTimeoutDelta)
	usr.UpdatedAt = NowFunc().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "saving reset token")
	}

	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	usr, err := svc.repo.GetUserByResetToken(ctx, rp.Token)
	if err != nil {
		if err == ErrNotFound {
			return ErrInvalidToken
		}
		return err
	}
	if usr.ResetTokenExpiry.Before(NowFunc().UTC()) {
		return ErrInvalidToken
	}

	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.ResetToken = ""
	usr.ResetTokenExpiry = time.Time{}
	usr.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "saving new password")
}

func (svc *service) sendPasswordResetMail(usr User) {
	resetURL := fmt.Sprintf("%s/auth/reset-password?token=%s", svc.conf.FrontendBaseURL, usr.ResetToken)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Reset your password",
		TextContent: fmt.Sprintf(
			"Click the link below to reset your password:\r\n\r\n%s\r\n\r\n"+
				"This link will expire in %s.\r\n"+
				"If you didn't request this, please ignore this email.\r\n",
			resetURL, svc.conf.PasswordResetTimeoutDelta,
		),
		HTMLContent: fmt.Sprintf(
			"<h1>Reset your password</h1>"+
				"<p>Click the link below to reset your password:</p>"+
				"<a href=%[1]q>%[1]s</a>"+
				"<p>This link will expire in %[2]s.</p>"+
				"<p>If you didn't request this, please ignore this email.</p>",
			resetURL, svc.conf.PasswordResetTimeoutDelta,
		),
	})
}
