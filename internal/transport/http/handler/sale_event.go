package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/go-sale-provisioner/internal/application/provision"
	"github.com/go-sale-provisioner/internal/domain"
)

const maxMultipartMemory = 1 << 20

// SaleEventHandler receives sale webhooks.
type SaleEventHandler struct {
	svc provision.Service
}

func NewSaleEventHandler(svc provision.Service) *SaleEventHandler {
	return &SaleEventHandler{svc: svc}
}

func (h *SaleEventHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ev, err := decodeSaleEvent(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res := h.svc.Provision(r.Context(), ev)
	env := ProvisionEnvelope{
		Status:  string(res.Outcome),
		EventID: res.EventID,
		Email:   res.Email,
	}
	switch res.Outcome {
	case domain.OutcomeSuccess:
		env.Credits = res.Credits
		env.Returning = res.Returning
		env.Published = res.Published
		env.Message = "credentials issued and sent"
		writeJSON(w, http.StatusOK, env)
	case domain.OutcomePartial:
		env.Credits = res.Credits
		env.Returning = res.Returning
		env.Published = res.Published
		env.FailedSteps = res.FailedSteps()
		env.Message = "credentials issued; some follow-up steps failed"
		writeJSON(w, http.StatusOK, env)
	case domain.OutcomeIgnored:
		env.Message = "sale event ignored: " + res.Reason
		writeJSON(w, http.StatusOK, env)
	case domain.OutcomeRejected:
		env.Error = res.Reason
		writeJSON(w, http.StatusBadRequest, env)
	default:
		env.Status = string(domain.OutcomeFailed)
		env.Error = res.Reason
		writeJSON(w, http.StatusInternalServerError, env)
	}
}

// decodeSaleEvent accepts a JSON body or form fields (urlencoded or
// multipart), which is what payment platforms post.
func decodeSaleEvent(r *http.Request) (domain.SaleEvent, error) {
	var ev domain.SaleEvent
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		err := json.NewDecoder(r.Body).Decode(&ev)
		return ev, err
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return ev, err
		}
	default:
		if err := r.ParseForm(); err != nil {
			return ev, err
		}
	}
	ev.Email = r.FormValue("email")
	ev.ProductID = r.FormValue("product_id")
	ev.SaleID = r.FormValue("sale_id")
	return ev, nil
}
