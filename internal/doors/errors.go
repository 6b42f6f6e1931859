package doors

import "errors"

// 门操作错误定义

var (
	ErrNotAuthoritative  = errors.New("NOT_AUTHORITATIVE")
	ErrNotGM             = errors.New("NOT_GM")
	ErrInvalidTransition = errors.New("INVALID_DOOR_TRANSITION")
	ErrDoorNotClosed     = errors.New("DOOR_NOT_CLOSED")
	ErrPeekNotAllowed    = errors.New("PEEK_NOT_ALLOWED")
	ErrNoTrap            = errors.New("NO_TRAP")
	ErrTrapInactive      = errors.New("TRAP_INACTIVE")
	ErrNotSecret         = errors.New("NOT_SECRET_DOOR")
	ErrNoCharacter       = errors.New("NO_CHARACTER")
	ErrNoKey             = errors.New("NO_MATCHING_KEY")
)

// DoorError 门操作错误（带上下文信息）
type DoorError struct {
	Code    string // 错误码
	DoorID  string // 门 ID
	Message string // 错误消息
	Err     error  // 原始错误
}

func (e *DoorError) Error() string {
	msg := e.Message
	if e.DoorID != "" {
		msg += " (" + e.DoorID + ")"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *DoorError) Unwrap() error {
	return e.Err
}

// NewDoorError 创建门操作错误
func NewDoorError(code, doorID, message string, err error) *DoorError {
	return &DoorError{
		Code:    code,
		DoorID:  doorID,
		Message: message,
		Err:     err,
	}
}
