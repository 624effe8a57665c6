package api

import (
	"context"

	"tradewatch/internal/model"
)

// LoginRequest is the credentials payload for POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"u_pass"`
}

// LoginResponse carries the bearer token and the user record returned on a
// successful login.
type LoginResponse struct {
	Token string         `json:"token"`
	User  model.Identity `json:"user"`
}

// SignupRequest is the payload for POST /signup.
type SignupRequest struct {
	Name     string `json:"u_name"`
	Email    string `json:"email"`
	Password string `json:"u_pass"`
}

// OTPRequest verifies a one-time password for signup or password reset.
type OTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// Login authenticates with email and password and returns the issued token
// plus the user record.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.postJSON(ctx, "/login", LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signup registers a new account. The backend sends an OTP to the given
// email; the account activates after VerifyOTP.
func (c *Client) Signup(ctx context.Context, name, email, password string) error {
	return c.postJSON(ctx, "/signup", SignupRequest{Name: name, Email: email, Password: password}, nil)
}

// VerifyOTP confirms the signup one-time password.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) error {
	return c.postJSON(ctx, "/verify-otp", OTPRequest{Email: email, OTP: otp}, nil)
}

// ForgotPassword starts a password reset for the given email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.postJSON(ctx, "/forgot-password", map[string]string{"email": email}, nil)
}

// VerifyResetOTP confirms the password-reset one-time password.
func (c *Client) VerifyResetOTP(ctx context.Context, email, otp string) error {
	return c.postJSON(ctx, "/verify-reset-otp", OTPRequest{Email: email, OTP: otp}, nil)
}
