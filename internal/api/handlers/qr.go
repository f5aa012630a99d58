// qr.go — QR-код ссылки на скачивание.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	apierrors "github.com/bigkaa/fileshare/internal/api/errors"
	"github.com/bigkaa/fileshare/internal/domain/model"
	"github.com/bigkaa/fileshare/internal/service"
)

// qrSize — сторона PNG в пикселях.
const qrSize = 256

// QRHandler — обработчик GET /api/qr/{token}.
type QRHandler struct {
	fileSvc    *service.FileService
	trustProxy bool
	logger     *slog.Logger
}

// NewQRHandler создаёт QRHandler.
func NewQRHandler(fileSvc *service.FileService, trustProxy bool, logger *slog.Logger) *QRHandler {
	return &QRHandler{
		fileSvc:    fileSvc,
		trustProxy: trustProxy,
		logger:     logger.With(slog.String("component", "qr_handler")),
	}
}

// QRCode отдаёт PNG с QR-кодом ссылки на скачивание существующего файла.
func (h *QRHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if !model.ValidToken(token) {
		notFound(w, token)
		return
	}

	if _, opErr := h.fileSvc.Get(token); opErr != nil {
		opErr.Write(w)
		return
	}

	png, err := qrcode.Encode(DownloadURL(r, token, h.trustProxy), qrcode.Medium, qrSize)
	if err != nil {
		h.logger.Error("Ошибка генерации QR-кода",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка генерации QR-кода")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
