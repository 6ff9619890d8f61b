package http

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

type verificationRequest struct {
	Token string `json:"token"`
	Phone string `json:"phone"`
}

type verificationCheck struct {
	Token string `json:"token"`
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (h *Handler) requestExport(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerIDFromContext(r.Context())

	res, err := h.service.RequestExport(r.Context(), ownerID)
	if err != nil {
		writeDomainError(r.Context(), w, "request_export", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) requestCode(w http.ResponseWriter, r *http.Request) {
	var req verificationRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "request_code", err)
		return
	}

	if err := h.service.RequestCode(r.Context(), req.Token, req.Phone); err != nil {
		writeDomainError(r.Context(), w, "request_code", err)
		return
	}
	writeMessage(w, http.StatusOK, "Verification code sent")
}

func (h *Handler) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req verificationCheck
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "verify_code", err)
		return
	}

	if err := h.service.VerifyCode(r.Context(), req.Token, req.Phone, req.Code); err != nil {
		writeDomainError(r.Context(), w, "verify_code", err)
		return
	}
	writeMessage(w, http.StatusOK, "Export verified")
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", "token query parameter is required")
		return
	}

	res, err := h.service.Deliver(r.Context(), token)
	if err != nil {
		writeDomainError(r.Context(), w, "download", err)
		return
	}
	defer h.service.FinishDownload(r.Context(), res)

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", res.Size))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, res.File); err != nil {
		// Headers are already on the wire; the consumed download is burned.
		logOperationFailure(r.Context(), "download", http.StatusOK, "STREAM_INTERRUPTED", err)
	}
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))

	res, err := h.service.Status(r.Context(), token)
	if err != nil {
		writeDomainError(r.Context(), w, "status", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
