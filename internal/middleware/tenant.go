package middleware

import (
	"net/http"
	"strings"
	"time"

	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/constants"
	reqctx "caretransport/dispatch/internal/context"
	"caretransport/dispatch/internal/models"
)

// TenantMiddleware requires X-Company-Id and stores the company and the
// optional X-User-Id actor in the request context
func TenantMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			companyID := strings.TrimSpace(r.Header.Get(constants.HeaderCompanyID))
			if companyID == "" {
				common.RespondError(w, time.Now(), constants.ErrCodeMissingCompany, constants.GetRouteErrorMessage(constants.ErrCodeMissingCompany), http.StatusBadRequest)
				return
			}

			ctx := reqctx.SetTenant(r.Context(), reqctx.Tenant{
				CompanyID: models.CompanyID(companyID),
				UserID:    models.UserID(strings.TrimSpace(r.Header.Get(constants.HeaderUserID))),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
