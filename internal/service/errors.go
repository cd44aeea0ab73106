package service

import (
	"errors"
	"fmt"
)

// Семейство ошибки — то, как транспортному слою её отдавать.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindInvalidInput     Kind = "invalid_input"
	KindStateConflict    Kind = "state_conflict"
	KindStorageFailure   Kind = "storage_failure"
)

// Конкретный код ошибки внутри семейства.
type Code string

const (
	CodeEventNotFound            Code = "event_not_found"
	CodeSlotNotFound             Code = "slot_not_found"
	CodeUserNotFound             Code = "user_not_found"
	CodeNotCreator               Code = "not_creator"
	CodeInvalidArgument          Code = "invalid_argument"
	CodeInvalidTimeFormat        Code = "invalid_time_format"
	CodeNoSlotsSelected          Code = "no_slots_selected"
	CodeInvalidSlotSelection     Code = "invalid_slot_selection"
	CodeInvalidSlotID            Code = "invalid_slot_id"
	CodeMultipleChoiceNotAllowed Code = "multiple_choice_not_allowed"
	CodeAlreadyFinalized         Code = "already_finalized"
	CodeNotFinalized             Code = "not_finalized"
	CodeStorageFailure           Code = "storage_failure"
)

// Error — структурированная ошибка ядра: семейство, код и сообщение.
// Движок никогда не отдаёт наружу голые ошибки хранилища.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

var (
	ErrEventNotFound = &Error{Kind: KindNotFound, Code: CodeEventNotFound, Message: "event not found or deleted"}
	ErrSlotNotFound  = &Error{Kind: KindNotFound, Code: CodeSlotNotFound, Message: "slot not found or deleted"}
	ErrUserNotFound  = &Error{Kind: KindNotFound, Code: CodeUserNotFound, Message: "user not found"}

	ErrNotCreator = &Error{Kind: KindPermissionDenied, Code: CodeNotCreator, Message: "only the event creator may perform this operation"}

	ErrNoSlotsSelected          = &Error{Kind: KindInvalidInput, Code: CodeNoSlotsSelected, Message: "no slots selected"}
	ErrInvalidSlotSelection     = &Error{Kind: KindInvalidInput, Code: CodeInvalidSlotSelection, Message: "selection contains unknown or deleted slots"}
	ErrMultipleChoiceNotAllowed = &Error{Kind: KindInvalidInput, Code: CodeMultipleChoiceNotAllowed, Message: "multiple selection is not allowed for this event"}

	ErrAlreadyFinalized = &Error{Kind: KindStateConflict, Code: CodeAlreadyFinalized, Message: "event is already finalized"}
	ErrNotFinalized     = &Error{Kind: KindStateConflict, Code: CodeNotFinalized, Message: "event is not finalized"}
)

func invalidInput(code Code, msg string) *Error {
	return &Error{Kind: KindInvalidInput, Code: code, Message: msg}
}

func invalidSlotID(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Code: CodeInvalidSlotID, Message: msg}
}

// storageFailure оборачивает ошибку хранилища: операция целиком не
// применилась, наружу уходит чистый отказ.
func storageFailure(err error) *Error {
	return &Error{Kind: KindStorageFailure, Code: CodeStorageFailure, Message: "storage operation failed", cause: err}
}

// asEngineErr пропускает структурированные ошибки ядра как есть,
// всё остальное (ошибки транзакции, драйвера) заворачивает в StorageFailure.
func asEngineErr(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return storageFailure(err)
}

// CodeOf возвращает код структурированной ошибки ядра,
// пустую строку для любой другой.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
