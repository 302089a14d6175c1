package response

// Response is the JSON envelope of every API reply
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorData  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorData describes a failed request
type ErrorData struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Meta carries list metadata
type Meta struct {
	Total int `json:"total"`
}

func Success(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// List wraps a slice together with its length
func List(data interface{}, total int) Response {
	return Response{Success: true, Data: data, Meta: &Meta{Total: total}}
}

func Error(code, message string) Response {
	return Response{Success: false, Error: &ErrorData{Code: code, Message: message}}
}

// ErrorWithDetails attaches structured details (for example purchasesCount) to an error
func ErrorWithDetails(code, message string, details map[string]interface{}) Response {
	r := Error(code, message)
	if len(details) > 0 {
		r.Error.Details = details
	}
	return r
}

func BadRequest(message string) Response {
	return Error("BAD_REQUEST", message)
}

func NotFound(message string) Response {
	return Error("NOT_FOUND", message)
}

func Unauthorized(message string) Response {
	return Error("UNAUTHORIZED", message)
}

func Forbidden(message string) Response {
	return Error("FORBIDDEN", message)
}

func InternalError(message string) Response {
	return Error("INTERNAL_ERROR", message)
}
