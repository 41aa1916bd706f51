package models

// Requests for presentation HTTP endpoints. Defined in domain for consistency and reuse.

type PresentationRequest struct {
	// zero is a valid cap; absence is detected from the raw query
	Cap    int  `query:"cap" json:"cap" validate:"gte=0,lte=500"`
	Expand bool `query:"expand" json:"expand"`
}

type DismissNoticeRequest struct {
	UserID   string `json:"user_id" validate:"required,max=128"`
	NoticeID string `json:"notice_id" validate:"required,max=128"`
	WindowID string `json:"window_id" validate:"omitempty,max=64"`
}

type NoticeStatusRequest struct {
	UserID   string `query:"user_id" validate:"required,max=128"`
	NoticeID string `query:"notice_id" validate:"required,max=128"`
	WindowID string `query:"window_id" validate:"omitempty,max=64"`
}
