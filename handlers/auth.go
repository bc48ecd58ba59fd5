package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"stocks-simulator/ledger"
	"stocks-simulator/middleware"
)

type AuthInput struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type SignupInput struct {
	AuthInput
	Confirmation string `json:"confirmation" form:"confirmation" binding:"required"`
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token" binding:"required"`
}

func refreshKey(token string) string { return "refresh:" + token }

func (h *Handler) Signup(c *gin.Context) {
	var input SignupInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Password != input.Confirmation {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Passwords must match"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error hashing password"})
		return
	}

	user, err := h.Accounts.CreateUser(c.Request.Context(), input.Username, string(hashedPassword), h.StartingCash)
	if err != nil {
		abort(c, err)
		return
	}
	log.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("user registered")

	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "id": user.ID})
}

func (h *Handler) Login(c *gin.Context) {
	var input AuthInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Accounts.FindUserByUsername(c.Request.Context(), input.Username)
	if errors.Is(err, ledger.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username and/or password"})
		return
	}
	if err != nil {
		abort(c, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username and/or password"})
		return
	}

	accessToken, err := middleware.IssueToken(h.JWTSecret, user.ID, middleware.AccessToken, h.AccessTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error generating token"})
		return
	}
	refreshToken, err := middleware.IssueToken(h.JWTSecret, user.ID, middleware.RefreshToken, h.RefreshTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error generating refresh token"})
		return
	}

	if h.Redis != nil {
		err = h.Redis.Set(c.Request.Context(), refreshKey(refreshToken), user.ID, h.RefreshTokenTTL).Err()
		if err != nil {
			log.Error().Err(err).Msg("storing refresh token")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error storing refresh token"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

// Refresh trades a valid refresh token for a new access token. With Redis
// configured the token must also not have been revoked by Logout.
func (h *Handler) Refresh(c *gin.Context) {
	var input RefreshInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := middleware.ParseToken(h.JWTSecret, input.RefreshToken, middleware.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	if err := h.checkRefreshToken(c.Request.Context(), input.RefreshToken); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	accessToken, err := middleware.IssueToken(h.JWTSecret, userID, middleware.AccessToken, h.AccessTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error generating token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": accessToken})
}

func (h *Handler) checkRefreshToken(ctx context.Context, token string) error {
	if h.Redis == nil {
		return nil
	}
	n, err := h.Redis.Exists(ctx, refreshKey(token)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cannot verify refresh token")
	}
	if n == 0 {
		return fmt.Errorf("refresh token revoked")
	}
	return nil
}

// Logout revokes the given refresh token.
func (h *Handler) Logout(c *gin.Context) {
	var input RefreshInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.Redis != nil {
		if err := h.Redis.Del(c.Request.Context(), refreshKey(input.RefreshToken)).Err(); err != nil {
			log.Error().Err(err).Msg("revoking refresh token")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error revoking refresh token"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
