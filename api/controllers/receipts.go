package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/thevault/register/api/middleware"
	"github.com/thevault/register/api/responses"
	"github.com/thevault/register/api/validators"
	"github.com/thevault/register/internal/receipt"
	"github.com/thevault/register/pkg/auth"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/logger"
)

// ReceiptService loads and renders receipts.
type ReceiptService interface {
	ForSale(ctx context.Context, sess auth.Session, saleID int64) (receipt.Receipt, error)
	ForReceiptNumber(ctx context.Context, sess auth.Session, number string) (receipt.Receipt, error)
}

type receiptResponse struct {
	receipt.Receipt
	QRDataURI string `json:"qr_data_uri,omitempty"`
}

func ReceiptFetch(svc ReceiptService, logg *logger.Logger) http.HandlerFunc {
	return receiptHandler(svc, logg, bySaleID, func(w http.ResponseWriter, rec receipt.Receipt) {
		responses.WriteSuccess(w, receiptResponse{Receipt: rec, QRDataURI: rec.QRDataURI()})
	})
}

// ReceiptText serves the fixed-width receipt as a download.
func ReceiptText(svc ReceiptService, logg *logger.Logger) http.HandlerFunc {
	return receiptHandler(svc, logg, bySaleID, func(w http.ResponseWriter, rec receipt.Receipt) {
		w.Header().Set("Content-Disposition", `attachment; filename="`+receipt.Filename(rec, "txt")+`"`)
		responses.WriteBytes(w, "text/plain; charset=utf-8", []byte(receipt.Text(rec)))
	})
}

// ReceiptQR serves the reference QR code as PNG.
func ReceiptQR(svc ReceiptService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := loadReceipt(r, svc, bySaleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(rec.QRCode) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "reference code unavailable"))
			return
		}
		responses.WriteBytes(w, "image/png", rec.QRCode)
	}
}

func ReceiptByNumber(svc ReceiptService, logg *logger.Logger) http.HandlerFunc {
	return receiptHandler(svc, logg, byReceiptNumber, func(w http.ResponseWriter, rec receipt.Receipt) {
		responses.WriteSuccess(w, receiptResponse{Receipt: rec, QRDataURI: rec.QRDataURI()})
	})
}

type receiptLookup func(r *http.Request, svc ReceiptService, sess auth.Session) (receipt.Receipt, error)

func bySaleID(r *http.Request, svc ReceiptService, sess auth.Session) (receipt.Receipt, error) {
	saleID, err := validators.ParsePathID(r, "saleID")
	if err != nil {
		return receipt.Receipt{}, err
	}
	return svc.ForSale(r.Context(), sess, saleID)
}

func byReceiptNumber(r *http.Request, svc ReceiptService, sess auth.Session) (receipt.Receipt, error) {
	number := validators.SanitizeString(chi.URLParam(r, "receiptNumber"), 64)
	if number == "" || strings.ContainsAny(number, " /") {
		return receipt.Receipt{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid receipt number")
	}
	return svc.ForReceiptNumber(r.Context(), sess, number)
}

func loadReceipt(r *http.Request, svc ReceiptService, lookup receiptLookup) (receipt.Receipt, error) {
	if svc == nil {
		return receipt.Receipt{}, pkgerrors.New(pkgerrors.CodeInternal, "receipts unavailable")
	}
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		return receipt.Receipt{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	return lookup(r, svc, sess)
}

func receiptHandler(svc ReceiptService, logg *logger.Logger, lookup receiptLookup, write func(http.ResponseWriter, receipt.Receipt)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := loadReceipt(r, svc, lookup)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		write(w, rec)
	}
}
