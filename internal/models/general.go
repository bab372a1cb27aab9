package models

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
