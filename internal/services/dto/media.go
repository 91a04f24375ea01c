package dto

type MediaUploadRequest struct {
	FileName    string `json:"file_name" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required,max=127,contains=/"`
}
