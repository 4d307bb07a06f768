package domain

// Display labels for record fields. They appear only at the table-import,
// rendering and export edges.
const (
	LabelFullName  = "Họ và tên"
	LabelClassName = "Lớp"
	LabelViolation = "Lỗi vi phạm"
	LabelTime      = "Thời gian"
)
