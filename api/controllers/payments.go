package controllers

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/minhvodev/storefront-backend/api/middleware"
	"github.com/minhvodev/storefront-backend/api/responses"
	"github.com/minhvodev/storefront-backend/api/validators"
	"github.com/minhvodev/storefront-backend/internal/orders"
	"github.com/minhvodev/storefront-backend/internal/payments"
	pkgerrors "github.com/minhvodev/storefront-backend/pkg/errors"
	"github.com/minhvodev/storefront-backend/pkg/logger"
)

// CreateGatewayPayment stages a checkout and hands back the signed gateway
// URL the client should redirect the buyer to.
func CreateGatewayPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		buyerID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		var input orders.CheckoutInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payURL, err := svc.CreateGatewayPayment(r.Context(), buyerID, input, clientIP(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"pay_url": payURL})
	}
}

// GatewayReturn terminates the browser redirect leg. The reconciler always
// yields a destination; the buyer is never shown a raw error.
func GatewayReturn(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := svc.HandleReturn(r.Context(), r.URL.Query())
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// GatewayIPN terminates the server-to-server leg. The acknowledgement body,
// not the HTTP status, tells the gateway whether to retry.
func GatewayIPN(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		if len(params) == 0 {
			if err := r.ParseForm(); err == nil {
				params = r.Form
			}
		}
		responses.WriteAck(w, svc.HandleIPN(r.Context(), params))
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
