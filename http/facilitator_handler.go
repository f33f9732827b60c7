package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/encoding"
	"github.com/x402labs/x402-go/validation"
)

// NewFacilitatorHandler exposes a local facilitator as an HTTP service with
// the standard POST /verify, POST /settle and GET /supported endpoints. The
// result is the server-side counterpart of FacilitatorClient.
func NewFacilitatorHandler(facilitator *x402.Facilitator) http.Handler {
	r := chi.NewRouter()

	r.Post("/verify", func(w http.ResponseWriter, req *http.Request) {
		payload, requirements, ok := decodeFacilitatorRequest(w, req)
		if !ok {
			return
		}

		result, err := facilitator.Verify(req.Context(), payload, requirements)
		if err != nil {
			writeFacilitatorError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Post("/settle", func(w http.ResponseWriter, req *http.Request) {
		payload, requirements, ok := decodeFacilitatorRequest(w, req)
		if !ok {
			return
		}

		result, err := facilitator.Settle(req.Context(), payload, requirements)
		if err != nil {
			writeFacilitatorError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Get("/supported", func(w http.ResponseWriter, req *http.Request) {
		supported, err := facilitator.GetSupported(req.Context())
		if err != nil {
			writeFacilitatorError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, supported)
	})

	return r
}

func decodeFacilitatorRequest(w http.ResponseWriter, req *http.Request) (x402.PaymentPayload, x402.PaymentRequirements, bool) {
	var body facilitatorRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return x402.PaymentPayload{}, x402.PaymentRequirements{}, false
	}

	payload, err := encoding.DecodePayment(body.Payload)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment payload"})
		return x402.PaymentPayload{}, x402.PaymentRequirements{}, false
	}
	if err := validation.ValidatePaymentPayload(payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid payment payload: %v", err)})
		return x402.PaymentPayload{}, x402.PaymentRequirements{}, false
	}

	return payload, body.Details, true
}

func writeFacilitatorError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, x402.ErrNoFacilitator) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
