package router

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Yusufzhafir/illiquid-sim/internal/router/middleware"
	"github.com/Yusufzhafir/illiquid-sim/internal/usecase/user"
)

type UserRouter interface {
	GetUser(w http.ResponseWriter, r *http.Request)
	RegisterUser(w http.ResponseWriter, r *http.Request)
	LoginUser(w http.ResponseWriter, r *http.Request)
}

type userRouterImpl struct {
	usecase    user.UserUseCase
	tokenMaker *middleware.JWTMaker
	tokenTTL   time.Duration
}

func NewUserRouter(usecase user.UserUseCase, tokenMaker *middleware.JWTMaker, tokenTTL time.Duration) UserRouter {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &userRouterImpl{
		usecase:    usecase,
		tokenMaker: tokenMaker,
		tokenTTL:   tokenTTL,
	}
}

type UserResponse struct {
	Id        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Username  string    `json:"username"`
}

func (ur *userRouterImpl) GetUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, errors.New("missing claims"))
		return
	}

	u, err := ur.usecase.GetProfile(r.Context(), claims.UserId)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{
		Id:        fmt.Sprintf("%d", u.ID),
		CreatedAt: u.CreatedAt,
		Username:  u.Username,
	})
}

func (ur *userRouterImpl) RegisterUser(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	req, err := decodeJSON[RegisterRequest](w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	userId, err := ur.usecase.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeJSONError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, UserResponse{
		Id:        fmt.Sprintf("%d", userId),
		CreatedAt: time.Now(),
		Username:  req.Username,
	})
}

func (ur *userRouterImpl) LoginUser(w http.ResponseWriter, r *http.Request) {
	type LoginReq struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	type LoginRes struct {
		Token     string    `json:"token"`
		Id        string    `json:"id"`
		Username  string    `json:"username"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	req, err := decodeJSON[LoginReq](w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	u, err := ur.usecase.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeJSONError(w, statusFor(err), err)
		return
	}

	token, claims, err := ur.tokenMaker.CreateToken(u.ID, u.Username, ur.tokenTTL)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginRes{
		Token:     token,
		Id:        claims.ID,
		Username:  u.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}
