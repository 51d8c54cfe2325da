package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/identity"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/BearBump/zapshift/internal/services/payments"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// Stripe recommends capping webhook bodies at 64 KiB.
const webhookBodyLimit = 64 << 10

func (a *API) listParcels(w http.ResponseWriter, r *http.Request) {
	email, err := a.scopeEmail(r, r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.parcels.List(r.Context(), email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (a *API) createParcel(w http.ResponseWriter, r *http.Request) {
	var in models.ParcelCreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.SenderEmail == "" {
		in.SenderEmail = callerEmail(r)
	}
	p, err := a.parcels.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, p)
}

func (a *API) deleteParcel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.ownParcel(r, id); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.parcels.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (a *API) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var in payments.CheckoutInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Email == "" {
		in.Email = callerEmail(r)
	}
	res, err := a.payments.Initiate(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (a *API) confirmPayment(w http.ResponseWriter, r *http.Request) {
	res, err := a.payments.Confirm(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (a *API) listPayments(w http.ResponseWriter, r *http.Request) {
	email, err := a.scopeEmail(r, r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.payments.List(r.Context(), email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (a *API) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, webhookBodyLimit))
	if err != nil {
		writeError(w, r, errors.Wrap(apperr.Invalid, "read webhook body"))
		return
	}
	res, err := a.payments.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := map[string]any{"received": true}
	if res != nil {
		out["result"] = res
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (a *API) registerUser(w http.ResponseWriter, r *http.Request) {
	var in models.UserCreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.users.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	out, err := a.users.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (a *API) userRole(w http.ResponseWriter, r *http.Request) {
	role, err := a.users.Role(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"role": role})
}

type roleRequest struct {
	Role string `json:"role"`
}

func (a *API) updateUserRole(w http.ResponseWriter, r *http.Request) {
	var in roleRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := a.users.UpdateRole(r.Context(), chi.URLParam(r, "id"), in.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}

func (a *API) listRiders(w http.ResponseWriter, r *http.Request) {
	out, err := a.riders.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (a *API) applyRider(w http.ResponseWriter, r *http.Request) {
	var in models.RiderApplyInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Email == "" {
		in.Email = callerEmail(r)
	}
	app, err := a.riders.Apply(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, app)
}

func (a *API) deleteRider(w http.ResponseWriter, r *http.Request) {
	res, err := a.riders.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

type decisionRequest struct {
	Status string `json:"status"`
	Email  string `json:"email"`
}

func (a *API) decideRider(w http.ResponseWriter, r *http.Request) {
	var in decisionRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.riders.Decide(r.Context(), chi.URLParam(r, "id"), in.Status, in.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// scopeEmail limits list queries: a non-admin only ever sees their own
// email, an admin may ask for any email or (with none) for everything.
func (a *API) scopeEmail(r *http.Request, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	own := callerEmail(r)
	if requested != "" && strings.EqualFold(requested, own) {
		return requested, nil
	}

	err := a.users.RequireRole(r.Context(), own, models.RoleAdmin)
	switch {
	case err == nil:
		return requested, nil
	case !errors.Is(err, apperr.Forbidden):
		return "", err
	case requested == "":
		return own, nil
	default:
		return "", errors.Wrap(apperr.Forbidden, "only admins can read other users' records")
	}
}

// ownParcel lets senders touch their own parcels and admins any parcel.
// An unknown id passes so the delete reports zero documents.
func (a *API) ownParcel(r *http.Request, id string) error {
	p, err := a.parcels.Get(r.Context(), id)
	switch {
	case errors.Is(err, apperr.NotFound):
		return nil
	case err != nil:
		return err
	case strings.EqualFold(p.SenderEmail, callerEmail(r)):
		return nil
	}
	if err := a.users.RequireRole(r.Context(), callerEmail(r), models.RoleAdmin); err != nil {
		if errors.Is(err, apperr.Forbidden) {
			return errors.Wrap(apperr.Forbidden, "parcel belongs to another sender")
		}
		return err
	}
	return nil
}

func callerEmail(r *http.Request) string {
	id, _ := identity.FromContext(r.Context())
	return id.Email
}
