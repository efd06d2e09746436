package booking

import "time"

// Booking 记录一次心理咨询预约。
type Booking struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	CounselorID string    `json:"counselorId"`
	Date        string    `json:"date"`
	TimeSlot    string    `json:"timeSlot"`
	Notes       string    `json:"notes,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Request 是预约表单提交的内容。
type Request struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	CounselorID string `json:"counselor"`
	Date        string `json:"date"`
	TimeSlot    string `json:"timeSlot"`
	Notes       string `json:"notes"`
}

// Confirmation is returned to the client after a successful booking.
type Confirmation struct {
	Booking Booking `json:"booking"`
	Message string  `json:"message"`
}
