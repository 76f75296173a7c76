package middleware

import (
	"context"
	"net/http"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/handler/http/response"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

type companyKey struct{}

// RequireCompany scopes the request to the company_id claim.
func RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.HandleError(w, jwt.ErrInvalidToken)
			return
		}

		companyID, ok := claims["company_id"].(string)
		if !ok || companyID == "" {
			response.HandleError(w, jwt.ErrCompanyIDRequired)
			return
		}

		ctx := context.WithValue(r.Context(), companyKey{}, companyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CompanyID returns the company set by RequireCompany.
func CompanyID(ctx context.Context) string {
	companyID, _ := ctx.Value(companyKey{}).(string)
	return companyID
}

// WithCompanyID stores companyID the way RequireCompany does.
func WithCompanyID(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, companyKey{}, companyID)
}
