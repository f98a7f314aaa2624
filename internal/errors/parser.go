package errors

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo pairs an error code with a user-facing message.
type ErrorInfo struct {
	Code    string
	Message string
}

// ParseError converts a low-level error into a code and message that can be
// shown to users without leaking database internals. The context string hints
// at what operation was running ("registration", "payment create", ...).
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Code:    InternalServerError,
			Message: "Terjadi kesalahan pada server",
		}
	}

	errStr := err.Error()
	errStrLower := strings.ToLower(errStr)

	// GORM sentinel errors
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{
			Code:    ResourceNotFound,
			Message: getNotFoundMessage(context),
		}
	}

	// PostgreSQL constraint errors

	// unique constraint (23505)
	if strings.Contains(errStrLower, "duplicate key") || strings.Contains(errStrLower, "unique constraint") {
		return parseDuplicateKeyError(errStr, context)
	}

	// foreign key constraint (23503)
	if strings.Contains(errStrLower, "foreign key constraint") {
		return parseForeignKeyError(errStr, context)
	}

	// not-null constraint (23502)
	if strings.Contains(errStrLower, "null value") && strings.Contains(errStrLower, "violates not-null constraint") {
		return parseNotNullError(errStr)
	}

	// network errors talking to the payment gateway or storage
	if strings.Contains(errStrLower, "connection refused") ||
		strings.Contains(errStrLower, "no such host") ||
		strings.Contains(errStrLower, "timeout") {
		return ErrorInfo{
			Code:    InternalExternalAPI,
			Message: "Gagal terhubung ke layanan eksternal. Silakan coba beberapa saat lagi",
		}
	}

	return ErrorInfo{
		Code:    InternalServerError,
		Message: getDefaultErrorMessage(context),
	}
}

func parseDuplicateKeyError(errStr string, context string) ErrorInfo {
	errLower := strings.ToLower(errStr)

	// registration number collision during numbering retry
	if strings.Contains(errLower, "registration_number") {
		return ErrorInfo{
			Code:    RegistrationNumberConflict,
			Message: "Nomor pendaftaran sedang diproses. Silakan coba lagi",
		}
	}

	// one document per type per registration
	if strings.Contains(errLower, "idx_documents_reg_type") {
		return ErrorInfo{
			Code:    ResourceAlreadyExists,
			Message: "Dokumen dengan jenis tersebut sudah diunggah",
		}
	}

	// one payment per registration
	if strings.Contains(errLower, "registration_id") && strings.Contains(context, "payment") {
		return ErrorInfo{
			Code:    ResourceAlreadyExists,
			Message: "Tagihan pembayaran untuk pendaftaran ini sudah dibuat",
		}
	}

	if strings.Contains(errLower, "gateway_order_id") {
		return ErrorInfo{
			Code:    ResourceAlreadyExists,
			Message: "Nomor transaksi sudah digunakan",
		}
	}

	if strings.Contains(errLower, "email") || strings.Contains(errLower, "idx_users_email") {
		return ErrorInfo{
			Code:    ResourceAlreadyExists,
			Message: "Email sudah terdaftar",
		}
	}

	if strings.Contains(errLower, "pkey") || strings.Contains(errLower, "primary key") {
		return ErrorInfo{
			Code:    ResourceAlreadyExists,
			Message: "Data sudah ada. Silakan coba lagi",
		}
	}

	return ErrorInfo{
		Code:    ResourceAlreadyExists,
		Message: "Data sudah ada",
	}
}

func parseForeignKeyError(errStr string, context string) ErrorInfo {
	errLower := strings.ToLower(errStr)

	if strings.Contains(errLower, "still referenced") || strings.Contains(errLower, "is still referenced by") {
		return ErrorInfo{
			Code:    ResourceConflict,
			Message: "Data tidak dapat dihapus karena masih terhubung dengan data lain",
		}
	}

	if strings.Contains(errLower, "registration_id") {
		return ErrorInfo{
			Code:    RegistrationNotFound,
			Message: "Data pendaftaran tidak ditemukan",
		}
	}
	if strings.Contains(errLower, "user_id") || strings.Contains(errLower, "verified_by") {
		return ErrorInfo{
			Code:    ResourceNotFound,
			Message: "Data petugas tidak ditemukan",
		}
	}

	return ErrorInfo{
		Code:    ResourceNotFound,
		Message: "Data yang dirujuk tidak ditemukan",
	}
}

func parseNotNullError(errStr string) ErrorInfo {
	errLower := strings.ToLower(errStr)

	if strings.Contains(errLower, "email") {
		return ErrorInfo{Code: ValidationRequired, Message: "Email wajib diisi"}
	}
	if strings.Contains(errLower, "full_name") {
		return ErrorInfo{Code: ValidationRequired, Message: "Nama lengkap wajib diisi"}
	}
	if strings.Contains(errLower, "nik") {
		return ErrorInfo{Code: ValidationRequired, Message: "NIK wajib diisi"}
	}

	return ErrorInfo{
		Code:    ValidationRequired,
		Message: "Ada kolom wajib yang belum diisi",
	}
}

func getNotFoundMessage(context string) string {
	contextLower := strings.ToLower(context)

	if strings.Contains(contextLower, "registration") || strings.Contains(contextLower, "pendaftaran") {
		return "Data pendaftaran tidak ditemukan"
	}
	if strings.Contains(contextLower, "document") || strings.Contains(contextLower, "dokumen") {
		return "Dokumen tidak ditemukan"
	}
	if strings.Contains(contextLower, "payment") || strings.Contains(contextLower, "pembayaran") {
		return "Data pembayaran tidak ditemukan"
	}
	if strings.Contains(contextLower, "user") || strings.Contains(contextLower, "petugas") {
		return "Data petugas tidak ditemukan"
	}
	if strings.Contains(contextLower, "notification") {
		return "Notifikasi tidak ditemukan"
	}

	return "Data tidak ditemukan"
}

func getDefaultErrorMessage(context string) string {
	contextLower := strings.ToLower(context)

	if strings.Contains(contextLower, "create") || strings.Contains(contextLower, "submit") {
		return "Terjadi kesalahan saat menyimpan data. Silakan coba beberapa saat lagi"
	}
	if strings.Contains(contextLower, "update") || strings.Contains(contextLower, "verify") {
		return "Terjadi kesalahan saat memperbarui data. Silakan coba beberapa saat lagi"
	}
	if strings.Contains(contextLower, "delete") {
		return "Terjadi kesalahan saat menghapus data. Silakan coba beberapa saat lagi"
	}
	if strings.Contains(contextLower, "payment") || strings.Contains(contextLower, "charge") {
		return "Terjadi kesalahan saat memproses pembayaran. Silakan coba beberapa saat lagi"
	}

	return "Terjadi kesalahan pada server. Silakan coba beberapa saat lagi"
}
