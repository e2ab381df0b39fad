package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"pass_word"`
}

// Login вызывает POST /login. 401 здесь означает неверные учётные данные, а не истёкшую сессию.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (string, domain.User, error) {
	resp, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/login",
		body:   loginRequest{Username: creds.Username, Password: creds.Password},
	})
	if err != nil {
		if errors.Is(err, domain.ErrAuthExpiredOrForbidden) {
			return "", domain.User{}, withKind(err, domain.ErrInvalidCredentials)
		}
		return "", domain.User{}, err
	}

	token := gjson.GetBytes(resp.body, "token").String()
	if token == "" {
		return "", domain.User{}, fmt.Errorf("%w: login response without token", domain.ErrBackend)
	}
	user, ok := UserFromJSON(gjson.GetBytes(resp.body, "user").Raw)
	if !ok {
		return token, domain.User{}, fmt.Errorf("%w: login response without user", domain.ErrBackend)
	}
	return token, user, nil
}

// UserFromJSON читает профиль пользователя, принимая роль как role или user_role.
func UserFromJSON(raw string) (domain.User, bool) {
	if raw == "" || !gjson.Valid(raw) {
		return domain.User{}, false
	}
	u := gjson.Parse(raw)
	if !u.IsObject() {
		return domain.User{}, false
	}
	role := u.Get("role").String()
	if role == "" {
		role = u.Get("user_role").String()
	}
	name := u.Get("display_name").String()
	if name == "" {
		name = u.Get("full_name").String()
	}
	return domain.User{
		ID:          u.Get("id").Int(),
		Username:    u.Get("username").String(),
		Email:       u.Get("email").String(),
		Role:        domain.Role(role),
		DisplayName: name,
	}, true
}

type signupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"pass_word"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	UserAddress string `json:"user_address"`
	PhoneNumber string `json:"phone_number"`
	UserRole    string `json:"user_role"`
}

// Signup вызывает POST /signup.
func (c *Client) Signup(ctx context.Context, form domain.SignupForm) (string, error) {
	resp, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/signup",
		body: signupRequest{
			Username:    form.Username,
			Password:    form.Password,
			Email:       form.Email,
			FullName:    form.FullName,
			UserAddress: form.Address,
			PhoneNumber: form.Phone,
			UserRole:    string(form.Role),
		},
	})
	if err != nil {
		return "", err
	}
	return serverMessage(resp.body), nil
}

// Logout вызывает POST /logout с явно переданным токеном. Глобальная политика 401 не срабатывает.
func (c *Client) Logout(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrAuthRequired
	}
	_, err := c.do(ctx, call{method: http.MethodPost, path: "/logout", token: token})
	return err
}

type profileResponse struct {
	UserProfile struct {
		ID             int64  `json:"id"`
		Username       string `json:"username"`
		Email          string `json:"email"`
		Phone          string `json:"phone"`
		Address        string `json:"address"`
		NumberOfOrders int    `json:"number_of_orders"`
	} `json:"user_profile"`
	Orders []struct {
		OrderID    int64           `json:"order_id"`
		TotalPrice decimal.Decimal `json:"total_price"`
		Status     string          `json:"status"`
		CreatedAt  flexTime        `json:"created_at"`
	} `json:"orders"`
}

// Profile вызывает GET /profile.
func (c *Client) Profile(ctx context.Context) (domain.Profile, error) {
	resp, err := c.do(ctx, call{method: http.MethodGet, path: "/profile", auth: true})
	if err != nil {
		return domain.Profile{}, err
	}
	var out profileResponse
	if err := decode(resp, &out); err != nil {
		return domain.Profile{}, err
	}

	profile := domain.Profile{
		ID:             out.UserProfile.ID,
		Username:       out.UserProfile.Username,
		Email:          out.UserProfile.Email,
		Phone:          out.UserProfile.Phone,
		Address:        out.UserProfile.Address,
		NumberOfOrders: out.UserProfile.NumberOfOrders,
		Orders:         make([]domain.OrderSummary, 0, len(out.Orders)),
	}
	for _, o := range out.Orders {
		profile.Orders = append(profile.Orders, domain.OrderSummary{
			OrderID:    o.OrderID,
			TotalPrice: o.TotalPrice,
			Status:     domain.ParseOrderStatus(o.Status),
			CreatedAt:  o.CreatedAt.Time,
		})
	}
	return profile, nil
}

var _ domain.AuthAPI = (*Client)(nil)
