package dto

import "net/http"

// BaseResponse is the envelope of every API response. Data carries the
// payload, or the list of field problems on a validation failure.
type BaseResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func NewBaseResponse(code int, message string, data interface{}) *BaseResponse {
	return &BaseResponse{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func NewSuccessResponse(message string, data interface{}) *BaseResponse {
	return NewBaseResponse(http.StatusOK, message, data)
}

// NewBadRequestResponse attaches problems only when there are any.
func NewBadRequestResponse(message string, problems ...string) *BaseResponse {
	response := NewBaseResponse(http.StatusBadRequest, message, nil)
	if len(problems) > 0 {
		response.Data = problems
	}
	return response
}

func NewNotFoundResponse(message string) *BaseResponse {
	return NewBaseResponse(http.StatusNotFound, message, nil)
}

func NewConflictResponse(message string, data interface{}) *BaseResponse {
	return NewBaseResponse(http.StatusConflict, message, data)
}

func NewInternalErrorResponse(message string) *BaseResponse {
	return NewBaseResponse(http.StatusInternalServerError, message, nil)
}
