package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoInput        = errors.New("no input provided")
	ErrEmptyResult    = errors.New("no valid violation records found")
	ErrMalformedInput = errors.New("malformed input")
	ErrExport         = errors.New("export failed")

	ErrNotLoggedIn    = errors.New("session identity not set")
	ErrEditInProgress = errors.New("edit in progress")
	ErrNoPendingEdit  = errors.New("no pending edit")
)

// MissingColumnsError reports the required table columns that were not found
// in the header row.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// UserMessage maps a core error to the text shown to the person who triggered it.
func UserMessage(err error) string {
	var missing *MissingColumnsError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoInput):
		return "Chưa có dữ liệu: vui lòng nhập dữ liệu từ văn bản hoặc tải lên một tệp Excel."
	case errors.Is(err, ErrEmptyResult):
		return "Dữ liệu không hợp lệ: không tìm thấy dữ liệu vi phạm hợp lệ. Vui lòng kiểm tra lại định dạng đầu vào."
	case errors.As(err, &missing):
		return fmt.Sprintf("Tệp Excel thiếu các cột bắt buộc: %s.", strings.Join(missing.Missing, ", "))
	case errors.Is(err, ErrMalformedInput):
		return "Lỗi xử lý: đã có lỗi xảy ra. Vui lòng kiểm tra lại định dạng tệp hoặc nội dung nhập."
	case errors.Is(err, ErrExport):
		return "Lỗi xuất báo cáo: không thể tạo tệp. Vui lòng thử lại."
	case errors.Is(err, ErrNotLoggedIn):
		return "Vui lòng nhập thông tin người tạo trước: /vp-login Họ tên | Chức vụ"
	case errors.Is(err, ErrEditInProgress):
		return "Đang ở chế độ chỉnh sửa. Hãy lưu hoặc hủy trước khi nhập thêm."
	case errors.Is(err, ErrNoPendingEdit):
		return "Phiên chỉnh sửa đã hết hạn. Hãy mở lại /vp-edit."
	default:
		return fmt.Sprintf("Lỗi: %v", err)
	}
}
