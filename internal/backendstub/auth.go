package backendstub

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// claims — содержимое токена: идентификатор пользователя и срок действия.
type claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

type userKey struct{}

// IssueToken подписывает токен для пользователя (HS256).
func (s *Server) IssueToken(userID int64) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})
	return token.SignedString(s.secret)
}

func (s *Server) parseToken(raw string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid claims")
	}
	return c, nil
}

// requireUser пропускает запрос только с действующим bearer-токеном.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeMessage(w, http.StatusUnauthorized, "Token is missing!")
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeMessage(w, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}

		c, err := s.parseToken(raw)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			writeMessage(w, http.StatusUnauthorized, "Token has expired!")
			return
		case err != nil:
			s.logger.WithError(err).Debug("token rejected")
			writeMessage(w, http.StatusUnauthorized, "Token is invalid!")
			return
		}

		s.mu.Lock()
		u, found := s.usersByID[c.UserID]
		s.mu.Unlock()
		if !found {
			writeMessage(w, http.StatusUnauthorized, "User not found")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
	})
}

func currentUser(r *http.Request) *user {
	u, _ := r.Context().Value(userKey{}).(*user)
	return u
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"pass_word"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(r, &req) {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Missing username or password")
		return
	}

	s.mu.Lock()
	u, ok := s.users[strings.ToLower(req.Username)]
	s.mu.Unlock()
	if !ok || u.Password != req.Password {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.IssueToken(u.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to sign token")
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	s.logger.WithFields(log.Fields{"user_id": u.ID, "role": u.Role}).Info("user logged in")
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user": map[string]any{
			"id":       u.ID,
			"username": u.Username,
			"email":    u.Email,
			"role":     u.Role,
		},
	})
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

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(r, &req) {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if req.Username == "" || req.Password == "" || req.Email == "" {
		writeMessage(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	role := domain.Role(strings.ToLower(req.UserRole))
	if role == "" {
		role = domain.RoleCustomer
	}
	if !role.Valid() {
		writeMessage(w, http.StatusBadRequest, "Invalid role value")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[strings.ToLower(req.Username)]; exists {
		writeMessage(w, http.StatusBadRequest, "Username already exists")
		return
	}
	s.addUser(&user{
		User:     domain.User{Username: req.Username, Email: req.Email, Role: role, DisplayName: req.FullName},
		Password: req.Password,
		FullName: req.FullName,
		Address:  req.UserAddress,
		Phone:    req.PhoneNumber,
	})
	writeMessage(w, http.StatusCreated, "User created successfully")
}

func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "Logout successful. Please discard your token.")
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	orders, err := s.orders.ListByUser(u.ID, 0)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	history := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		history = append(history, map[string]any{
			"order_id":    o.ID,
			"total_price": o.TotalAmount,
			"status":      statusLabel(o.Status),
			"created_at":  httpDate(o.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_profile": map[string]any{
			"id":               u.ID,
			"username":         u.Username,
			"email":            u.Email,
			"phone":            u.Phone,
			"address":          u.Address,
			"number_of_orders": len(orders),
		},
		"orders": history,
	})
}
