package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/m-proto/loginpage/internal/pkg/apperror"
	"github.com/m-proto/loginpage/internal/pkg/response"
)

const (
	ServiceTokenHeader = "X-Service-Token"
	ServiceRole        = "internal_service"
	ServiceNameKey     = "service_name"
)

// InternalOnly protects admin endpoints with an HMAC-signed service JWT
// carried in X-Service-Token. An empty secret disables every protected route.
func InternalOnly(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			response.Error(c, apperror.ServiceUnavailableError(
				"Admin endpoints are disabled",
				"Configure security.internal_service_secret",
			))
			c.Abort()
			return
		}

		token := strings.TrimPrefix(c.GetHeader(ServiceTokenHeader), "Bearer ")
		if token == "" {
			response.Error(c, apperror.AuthenticationError("Missing service token", "Send a service JWT in "+ServiceTokenHeader))
			c.Abort()
			return
		}

		claims := jwt.MapClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !parsed.Valid {
			response.Error(c, apperror.AuthenticationError("Invalid service token", "Issue a new service token"))
			c.Abort()
			return
		}

		if role, ok := claims["role"].(string); !ok || role != ServiceRole {
			response.Error(c, apperror.AuthorizationError("Token does not have the service role", ""))
			c.Abort()
			return
		}

		if serviceName, ok := claims["service"].(string); ok {
			c.Set(ServiceNameKey, serviceName)
		}

		c.Next()
	}
}

// GenerateServiceToken creates a service JWT valid for ttl
func GenerateServiceToken(secret, serviceName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"role":    ServiceRole,
		"service": serviceName,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
